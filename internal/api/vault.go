package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/models"
	"github.com/vaultguard/vaultguard/internal/vault"
)

// handleListRecords returns the owner's records, newest first
func (s *Server) handleListRecords(c *gin.Context) {
	session := currentSession(c)

	records, err := s.store.List(c.Request.Context(), session.UserID)
	if err != nil {
		s.metrics.RecordVaultOperation("list", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordVaultOperation("list", "success")
	s.metrics.SetVaultRecords(storeBackend(s.store), len(records))
	c.JSON(http.StatusOK, records)
}

func storeBackend(store vault.Store) string {
	switch store.(type) {
	case *vault.SQLiteStore:
		return "sqlite"
	case *vault.MemoryStore:
		return "memory"
	default:
		return "other"
	}
}

// handleCreateRecord stores a new credential record
func (s *Server) handleCreateRecord(c *gin.Context) {
	session := currentSession(c)

	var draft models.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "malformed record"})
		return
	}

	record, err := s.store.Create(c.Request.Context(), session.UserID, draft)
	if err != nil {
		s.metrics.RecordVaultOperation("create", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordVaultOperation("create", "success")
	s.audit.Record(logging.NewAuditEvent(logging.RecordCreate, "create record", logging.StatusSuccess).
		WithUserID(session.UserID).WithResource(record.ID).WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusCreated, record)
}

// handleGetRecord returns one record by ID
func (s *Server) handleGetRecord(c *gin.Context) {
	session := currentSession(c)

	record, err := s.store.Get(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		s.metrics.RecordVaultOperation("get", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordVaultOperation("get", "success")
	c.JSON(http.StatusOK, record)
}

// handleUpdateRecord merges supplied fields into a record
func (s *Server) handleUpdateRecord(c *gin.Context) {
	session := currentSession(c)

	var update models.RecordUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "malformed record update"})
		return
	}

	record, err := s.store.Update(c.Request.Context(), session.UserID, c.Param("id"), update)
	if err != nil {
		s.metrics.RecordVaultOperation("update", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordVaultOperation("update", "success")
	s.audit.Record(logging.NewAuditEvent(logging.RecordUpdate, "update record", logging.StatusSuccess).
		WithUserID(session.UserID).WithResource(record.ID).WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusOK, record)
}

// handleDeleteRecord removes a record; deleting a missing ID succeeds
func (s *Server) handleDeleteRecord(c *gin.Context) {
	session := currentSession(c)
	id := c.Param("id")

	if err := s.store.Delete(c.Request.Context(), session.UserID, id); err != nil {
		s.metrics.RecordVaultOperation("delete", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordVaultOperation("delete", "success")
	s.audit.Record(logging.NewAuditEvent(logging.RecordDelete, "delete record", logging.StatusSuccess).
		WithUserID(session.UserID).WithResource(id).WithIPAddress(c.ClientIP()))
	c.Status(http.StatusNoContent)
}

type toggleFavoriteRequest struct {
	Current bool `json:"current"`
}

// handleToggleFavorite writes the negation of the client's current value
func (s *Server) handleToggleFavorite(c *gin.Context) {
	session := currentSession(c)

	var req toggleFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "malformed favorite toggle"})
		return
	}

	next, err := s.store.ToggleFavorite(c.Request.Context(), session.UserID, c.Param("id"), req.Current)
	if err != nil {
		s.metrics.RecordVaultOperation("toggle_favorite", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordVaultOperation("toggle_favorite", "success")
	c.JSON(http.StatusOK, gin.H{"favorite": next})
}

// handleWatch streams full snapshots as server-sent events. The first
// event is the current snapshot; each mutation pushes a replacement.
func (s *Server) handleWatch(c *gin.Context) {
	session := currentSession(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.writeError(c, fmt.Errorf("streaming unsupported"))
		return
	}

	ch, cancel := s.store.Subscribe(session.UserID)
	defer cancel()
	s.metrics.IncVaultSubscribers()
	defer s.metrics.DecVaultSubscribers()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	records, err := s.store.List(c.Request.Context(), session.UserID)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "initial snapshot failed", "error", err.Error())
		return
	}
	if !writeSnapshot(c.Writer, flusher, records) {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case snapshot, ok := <-ch:
			if !ok {
				return
			}
			if !writeSnapshot(c.Writer, flusher, snapshot.Records) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeSnapshot(w io.Writer, flusher http.Flusher, records []models.CredentialRecord) bool {
	if records == nil {
		records = []models.CredentialRecord{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
