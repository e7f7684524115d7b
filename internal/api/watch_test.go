package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultguard/vaultguard/internal/models"
)

// readSnapshot blocks until the next "data:" frame and decodes it.
func readSnapshot(t *testing.T, scanner *bufio.Scanner) []models.CredentialRecord {
	t.Helper()

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var records []models.CredentialRecord
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &records))
		return records
	}
	t.Fatalf("stream ended before a snapshot arrived: %v", scanner.Err())
	return nil
}

func TestServer_Watch(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUpAndSignIn(t, "watch@b.com", "secret1")

	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/vault/watch", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	// The stream opens with the current snapshot, empty here.
	initial := readSnapshot(t, scanner)
	assert.Empty(t, initial)

	created := env.do(t, http.MethodPost, "/vault/records", token, map[string]string{
		"title": "Mail", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	snapshot := readSnapshot(t, scanner)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Mail", snapshot[0].Title)

	var record models.CredentialRecord
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &record))
	deleted := env.do(t, http.MethodDelete, "/vault/records/"+record.ID, token, nil)
	require.Equal(t, http.StatusNoContent, deleted.Code)

	snapshot = readSnapshot(t, scanner)
	assert.Empty(t, snapshot)
}

func TestServer_WatchRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/vault/watch", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
