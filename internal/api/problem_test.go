package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/syncline/likesync/internal/store"
	"github.com/syncline/likesync/internal/syncerr"
)

func TestWriteProblem(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	rec := httptest.NewRecorder()

	WriteProblem(rec, req, http.StatusNotFound, "no such job")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Title != "Not Found" || p.Detail != "no such job" {
		t.Errorf("problem = %+v", p)
	}
	if p.Instance != "/api/v1/sync/status" {
		t.Errorf("instance = %q", p.Instance)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"invalid argument", syncerr.New(syncerr.CodeInvalidArgument, "bad"), http.StatusBadRequest},
		{"unauthenticated", syncerr.New(syncerr.CodeUnauthenticated, "expired"), http.StatusUnauthorized},
		{"permission denied", syncerr.New(syncerr.CodePermissionDenied, "quota"), http.StatusForbidden},
		{"remote service", syncerr.New(syncerr.CodeRemoteService, "backend"), http.StatusBadGateway},
		{"embedding provider", syncerr.New(syncerr.CodeEmbeddingProvider, "down"), http.StatusServiceUnavailable},
		{"storage", syncerr.New(syncerr.CodeStorage, "disk"), http.StatusInternalServerError},
		{"untyped", errors.New("surprise"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			MapError(rec, req, tt.err)

			if rec.Code != tt.expected {
				t.Errorf("status = %d, want %d", rec.Code, tt.expected)
			}
		})
	}
}

// Internal failures must never leak their details to the client.
func TestMapError_NoDetailLeak(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	MapError(rec, req, errors.New("dsn=postgres://admin:hunter2@db"))

	var p Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Detail != "Internal Server Error" {
		t.Errorf("detail = %q, internal details must not leak", p.Detail)
	}
}
