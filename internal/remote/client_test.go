package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marcus/taskdock/internal/models"
)

func TestApplySendsOperation(t *testing.T) {
	var got applyRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/apply" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-1", "dev-abc")
	err := c.Apply(context.Background(), models.OpUpdate, models.EntityTask, json.RawMessage(`{"id":"t1"}`))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if auth != "Bearer tok-1" {
		t.Errorf("authorization = %q", auth)
	}
	if got.Operation != models.OpUpdate || got.Entity != models.EntityTask || got.DeviceID != "dev-abc" {
		t.Errorf("request body = %+v", got)
	}
	if string(got.Payload) != `{"id":"t1"}` {
		t.Errorf("payload = %s", got.Payload)
	}
}

func TestApplyStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"bad request", http.StatusBadRequest, ErrValidation},
		{"unprocessable", http.StatusUnprocessableEntity, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(apiError{Code: "nope", Message: "rejected by server"})
			}))
			defer srv.Close()

			c := New(srv.URL, "tok", "dev")
			err := c.Apply(context.Background(), models.OpCreate, models.EntityTask, json.RawMessage(`{}`))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !strings.Contains(err.Error(), "rejected by server") {
				t.Errorf("err %q does not carry the server message", err)
			}
		})
	}
}

func TestApplyServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", "dev")
	err := c.Apply(context.Background(), models.OpCreate, models.EntityTask, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("no error for a 500")
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrValidation) {
		t.Errorf("500 classified as permanent: %v", err)
	}
}

func TestApplyTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(srv.URL, "tok", "dev")
	err := c.Apply(context.Background(), models.OpCreate, models.EntityTask, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("no error for a dead endpoint")
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrValidation) {
		t.Errorf("transport failure classified as permanent: %v", err)
	}
}

func TestApplyOmitsAuthHeaderWithoutToken(t *testing.T) {
	var auth string
	var hasHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, hasHeader = r.Header.Get("Authorization"), r.Header.Values("Authorization") != nil
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "dev")
	if err := c.Apply(context.Background(), models.OpCreate, models.EntityTask, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if hasHeader {
		t.Errorf("authorization header sent without a token: %q", auth)
	}
}

func TestHealthy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"not found still reachable", http.StatusNotFound, true},
		{"server down", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/healthz" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(srv.URL, "", "dev")
			if got := c.Healthy(context.Background()); got != tt.want {
				t.Errorf("healthy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "", "dev")
	if c.Healthy(context.Background()) {
		t.Error("dead endpoint reported healthy")
	}
}
