package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

const testUser = "11111111-1111-1111-1111-111111111111"

func TestRoundsSinceBuildsFilters(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rounds" {
			t.Errorf("expected path /rounds, got %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		_ = json.NewEncoder(w).Encode([]*schema.Round{
			{ID: "r1", UserID: testUser, Course: "Lakeside",
				Date: since, CreatedAt: since, UpdatedAt: since.Add(time.Hour)},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	rounds, err := c.RoundsSince(context.Background(), testUser, since)
	if err != nil {
		t.Fatalf("RoundsSince failed: %v", err)
	}

	if gotQuery["user_id"] != "eq."+testUser {
		t.Errorf("expected user_id filter, got %q", gotQuery["user_id"])
	}
	if gotQuery["updated_at"] != "gt.2024-01-01T00:00:00Z" {
		t.Errorf("expected updated_at filter, got %q", gotQuery["updated_at"])
	}
	if gotQuery["order"] != "updated_at.asc" {
		t.Errorf("expected ascending order, got %q", gotQuery["order"])
	}

	if len(rounds) != 1 || rounds[0].ID != "r1" {
		t.Errorf("expected decoded round r1, got %+v", rounds)
	}
}

func TestRoundsSinceSendsAuthHeaders(t *testing.T) {
	var apikey, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apikey = r.Header.Get("apikey")
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	token := func(ctx context.Context) (string, error) { return "tok123", nil }
	c := New(srv.URL, "key456", token)
	if _, err := c.RoundsSince(context.Background(), testUser, time.Time{}); err != nil {
		t.Fatalf("RoundsSince failed: %v", err)
	}

	if apikey != "key456" {
		t.Errorf("expected apikey header, got %q", apikey)
	}
	if auth != "Bearer tok123" {
		t.Errorf("expected bearer token, got %q", auth)
	}
}

func TestUpsertRoundsMergesOnID(t *testing.T) {
	var gotPrefer, gotConflict string
	var gotBody []*schema.Round

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotPrefer = r.Header.Get("Prefer")
		gotConflict = r.URL.Query().Get("on_conflict")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	c := New(srv.URL, "", nil)
	err := c.UpsertRounds(context.Background(), []*schema.Round{
		{ID: "r1", UserID: testUser, Course: "Lakeside",
			Date: now, CreatedAt: now, UpdatedAt: now},
	})
	if err != nil {
		t.Fatalf("UpsertRounds failed: %v", err)
	}

	if gotConflict != "id" {
		t.Errorf("expected on_conflict=id, got %q", gotConflict)
	}
	if gotPrefer != "resolution=merge-duplicates,return=minimal" {
		t.Errorf("unexpected Prefer header %q", gotPrefer)
	}
	if len(gotBody) != 1 || gotBody[0].ID != "r1" {
		t.Errorf("expected round r1 in body, got %+v", gotBody)
	}
}

func TestUpsertEmptyBatchSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	if err := c.UpsertPutts(context.Background(), nil); err != nil {
		t.Fatalf("UpsertPutts failed: %v", err)
	}
	if called {
		t.Error("expected no request for an empty batch")
	}
}

func TestStatusErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "row level security violation", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.RoundsSince(context.Background(), testUser, time.Time{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", statusErr.Status)
	}
}

func TestTransportFailureWrapsErrUnavailable(t *testing.T) {
	// A closed server refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.RoundsSince(context.Background(), testUser, time.Time{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	if err := c.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected Ping to report ErrUnavailable, got %v", err)
	}
}

func TestPingAnyResponseCountsAsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("expected reachable despite 401, got %v", err)
	}
}
