package vault

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/models"
)

// RemoteStore implements Store over HTTP against a running VaultGuard
// server. Records are scoped by the session token, so the ownerID
// arguments are ignored; they exist to satisfy the Store contract.
//
// There are no automatic retries: a transport failure surfaces as
// ErrRemoteUnavailable and recovery is the caller's explicit re-action.
type RemoteStore struct {
	baseURL string
	token   string
	// client bounds one-shot calls end to end. Watch streams must stay
	// open indefinitely, so stream carries no overall deadline; its
	// transport still bounds dialing and the response header wait.
	client *http.Client
	stream *http.Client
}

// NewRemoteStore creates a client adapter for the given server and session token
func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		stream: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

func (r *RemoteStore) newRequest(ctx context.Context, op, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, &errors.ErrRemoteUnavailable{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (r *RemoteStore) do(ctx context.Context, op, method, path string, body interface{}) (*http.Response, error) {
	req, err := r.newRequest(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &errors.ErrRemoteUnavailable{Op: op, Err: err}
	}
	return resp, nil
}

// checkStatus maps non-2xx responses onto the error taxonomy.
func checkStatus(op, id string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &errors.ErrNotFound{ID: id}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &errors.ErrInvalidCredentials{}
	case http.StatusBadRequest:
		return &errors.ErrValidation{Field: "request", Reason: strings.TrimSpace(string(payload))}
	default:
		return &errors.ErrRemoteUnavailable{
			Op:  op,
			Err: fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))),
		}
	}
}

// decodeRecord normalizes one stored document into the canonical shape.
func decodeRecord(body io.Reader) (models.CredentialRecord, error) {
	var doc map[string]interface{}
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return models.NormalizeDocument(doc), nil
}

func decodeRecordList(body io.Reader) ([]models.CredentialRecord, error) {
	var docs []map[string]interface{}
	if err := json.NewDecoder(body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	records := make([]models.CredentialRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, models.NormalizeDocument(doc))
	}
	return records, nil
}

// List fetches the owner's records, newest first
func (r *RemoteStore) List(ctx context.Context, _ string) ([]models.CredentialRecord, error) {
	resp, err := r.do(ctx, "list", http.MethodGet, "/vault/records", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus("list", "", resp); err != nil {
		return nil, err
	}
	return decodeRecordList(resp.Body)
}

// Get fetches one record by ID
func (r *RemoteStore) Get(ctx context.Context, _ string, id string) (models.CredentialRecord, error) {
	resp, err := r.do(ctx, "get", http.MethodGet, "/vault/records/"+id, nil)
	if err != nil {
		return models.CredentialRecord{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus("get", id, resp); err != nil {
		return models.CredentialRecord{}, err
	}
	return decodeRecord(resp.Body)
}

// Create validates the draft locally, then dispatches it. An invalid draft
// never produces a network call.
func (r *RemoteStore) Create(ctx context.Context, _ string, draft models.Draft) (models.CredentialRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}

	resp, err := r.do(ctx, "create", http.MethodPost, "/vault/records", draft)
	if err != nil {
		return models.CredentialRecord{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus("create", "", resp); err != nil {
		return models.CredentialRecord{}, err
	}
	return decodeRecord(resp.Body)
}

// Update merges the provided fields into the remote record
func (r *RemoteStore) Update(ctx context.Context, _ string, id string, update models.RecordUpdate) (models.CredentialRecord, error) {
	if err := update.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}

	resp, err := r.do(ctx, "update", http.MethodPatch, "/vault/records/"+id, update)
	if err != nil {
		return models.CredentialRecord{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus("update", id, resp); err != nil {
		return models.CredentialRecord{}, err
	}
	return decodeRecord(resp.Body)
}

// Delete removes a record. The server deletes missing ids silently, so a
// second delete of the same id succeeds.
func (r *RemoteStore) Delete(ctx context.Context, _ string, id string) error {
	resp, err := r.do(ctx, "delete", http.MethodDelete, "/vault/records/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkStatus("delete", id, resp)
}

// ToggleFavorite writes the negation of the caller-supplied value
func (r *RemoteStore) ToggleFavorite(ctx context.Context, _ string, id string, current bool) (bool, error) {
	resp, err := r.do(ctx, "toggle favorite", http.MethodPost, "/vault/records/"+id+"/favorite",
		map[string]bool{"current": current})
	if err != nil {
		return current, err
	}
	defer resp.Body.Close()

	if err := checkStatus("toggle favorite", id, resp); err != nil {
		return current, err
	}

	var result struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return current, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Favorite, nil
}

// Subscribe streams snapshots from the server's watch endpoint (SSE).
// The cancel function tears down the stream; it is the only cancellation
// primitive for the subscription.
func (r *RemoteStore) Subscribe(_ string) (<-chan models.CredentialsSnapshot, func()) {
	ch := make(chan models.CredentialsSnapshot, 1)
	ctx, cancelCtx := context.WithCancel(context.Background())

	go r.watch(ctx, ch)

	var once sync.Once
	cancel := func() {
		once.Do(cancelCtx)
	}
	return ch, cancel
}

func (r *RemoteStore) watch(ctx context.Context, ch chan<- models.CredentialsSnapshot) {
	defer close(ch)

	req, err := r.newRequest(ctx, "watch", http.MethodGet, "/vault/watch", nil)
	if err != nil {
		return
	}
	resp, err := r.stream.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		records, err := decodeRecordList(strings.NewReader(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			continue
		}

		snapshot := models.CredentialsSnapshot{Records: records}
		select {
		case ch <- snapshot:
		case <-ctx.Done():
			return
		}
	}
}

// Close implements Store Close (no-op for the HTTP client).
func (r *RemoteStore) Close() error {
	return nil
}

// Ensure RemoteStore implements the Store interface
var _ Store = (*RemoteStore)(nil)
