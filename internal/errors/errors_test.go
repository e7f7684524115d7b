package errors

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidationErrors(t *testing.T) {
	v := &ErrValidation{Field: "title", Reason: "must not be empty"}
	if !strings.Contains(v.Error(), "invalid title") {
		t.Fatalf("unexpected validation message: %s", v.Error())
	}
	if !strings.Contains(v.Error(), "must not be empty") {
		t.Fatalf("expected reason in message: %s", v.Error())
	}

	bare := &ErrValidation{Field: "password"}
	if bare.Error() != "invalid password" {
		t.Fatalf("unexpected bare validation message: %s", bare.Error())
	}

	cfg := &ErrInvalidConfiguration{Reason: "no character classes enabled"}
	if !strings.Contains(cfg.Error(), "invalid generator configuration") {
		t.Fatalf("unexpected configuration message: %s", cfg.Error())
	}
}

func TestPersistenceErrors(t *testing.T) {
	nf := &ErrNotFound{ID: "rec-1"}
	if !strings.Contains(nf.Error(), "rec-1") {
		t.Fatalf("expected ID in message: %s", nf.Error())
	}

	base := errors.New("connection refused")
	remote := &ErrRemoteUnavailable{Op: "list", Err: base}
	if !strings.Contains(remote.Error(), "store unavailable during list") {
		t.Fatalf("unexpected remote message: %s", remote.Error())
	}
	if !errors.Is(remote, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestIdentityErrors(t *testing.T) {
	if (&ErrInvalidCredentials{}).Error() != "invalid email or password" {
		t.Fatalf("unexpected credentials message")
	}

	unverified := &ErrEmailNotVerified{Email: "a@b.test"}
	if !strings.Contains(unverified.Error(), "a@b.test") {
		t.Fatalf("expected email in message: %s", unverified.Error())
	}

	exists := &ErrAccountAlreadyExists{Email: "a@b.test"}
	if !strings.Contains(exists.Error(), "already exists") {
		t.Fatalf("unexpected exists message: %s", exists.Error())
	}

	weak := &ErrWeakPassword{MinLength: 6}
	if !strings.Contains(weak.Error(), "6") {
		t.Fatalf("expected minimum length in message: %s", weak.Error())
	}

	limited := &ErrRateLimited{RetryAfter: 30 * time.Second}
	if !strings.Contains(limited.Error(), "30s") {
		t.Fatalf("expected retry hint in message: %s", limited.Error())
	}
	if (&ErrRateLimited{}).Error() != "too many attempts" {
		t.Fatalf("unexpected zero-value rate limit message")
	}

	base := errors.New("upstream down")
	provider := &ErrProvider{Op: "signin", Err: base}
	if !strings.Contains(provider.Error(), "signin") {
		t.Fatalf("expected op in message: %s", provider.Error())
	}
	if !errors.Is(provider, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestConfigErrors(t *testing.T) {
	notFound := &ErrConfigNotFound{Path: "/tmp/config.yaml"}
	if !strings.Contains(notFound.Error(), "config file not found") {
		t.Fatalf("unexpected error message: %s", notFound.Error())
	}

	base := errors.New("bad yaml")
	parse := &ErrConfigParse{Err: base}
	if !errors.Is(parse, base) {
		t.Fatalf("expected unwrap to base error")
	}

	validation := &ErrConfigValidation{Err: base}
	if !errors.Is(validation, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestDatabaseErrors(t *testing.T) {
	base := errors.New("db")

	op := &ErrDatabaseOpen{Path: "/tmp/db.sqlite", Err: base}
	if !strings.Contains(op.Error(), "failed to open database") {
		t.Fatalf("unexpected open message: %s", op.Error())
	}
	if !errors.Is(op, base) {
		t.Fatalf("expected unwrap to base error")
	}

	migration := &ErrDatabaseMigration{Version: 2, Err: base}
	if !strings.Contains(migration.Error(), "database migration 2 failed") {
		t.Fatalf("unexpected migration message: %s", migration.Error())
	}

	query := &ErrDatabaseQuery{Operation: "select", Err: base}
	if !strings.Contains(query.Error(), "database query failed") {
		t.Fatalf("unexpected query message: %s", query.Error())
	}
	if !errors.Is(query, base) {
		t.Fatalf("expected unwrap to base error")
	}
}
