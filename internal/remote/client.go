// Package remote is the HTTP client for the cloud store. The backend is a
// table-oriented REST API (PostgREST dialect): filtered selects via query
// parameters and upsert-by-id via POST with merge-duplicates. Wire field
// names are snake_case and map one to one onto the schema types.
//
// The client never touches the local store; the sync service mediates all
// traffic between the two.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

// ErrUnavailable wraps transport-level failures (DNS, refused connection,
// timeout) so callers can distinguish "remote unreachable" from a request
// the remote rejected.
var ErrUnavailable = errors.New("remote unavailable")

// StatusError is a non-2xx response from the remote store.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Status, e.Body)
}

// TokenFunc returns a bearer token for a request, or an error if the
// identity provider cannot supply one.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to the remote store. Construct with New; the zero value is
// not usable.
type Client struct {
	baseURL string
	apiKey  string
	token   TokenFunc
	http    *http.Client
}

// New creates a client for the remote store at baseURL. token may be nil
// when the API key alone authenticates. The HTTP client carries a bounded
// timeout so a hung request cannot stall a sync cycle forever.
func New(baseURL, apiKey string, token TokenFunc) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping probes the remote store for reachability. Any HTTP response counts
// as reachable; only transport failures report the remote as down.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = resp.Body.Close()
	return nil
}

// RoundsSince fetches the user's rounds with updated_at strictly after
// since, ascending by updated_at. A zero since fetches everything.
func (c *Client) RoundsSince(ctx context.Context, userID string, since time.Time) ([]*schema.Round, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("updated_at", "gt."+since.UTC().Format(time.RFC3339))
	q.Set("order", "updated_at.asc")

	var rounds []*schema.Round
	if err := c.get(ctx, "rounds", q, &rounds); err != nil {
		return nil, err
	}
	return rounds, nil
}

// HolesForRound fetches a round's holes in full.
func (c *Client) HolesForRound(ctx context.Context, roundID string) ([]*schema.Hole, error) {
	q := url.Values{}
	q.Set("round_id", "eq."+roundID)
	q.Set("order", "hole_number.asc")

	var holes []*schema.Hole
	if err := c.get(ctx, "holes", q, &holes); err != nil {
		return nil, err
	}
	return holes, nil
}

// PuttsForRound fetches a round's putts in full.
func (c *Client) PuttsForRound(ctx context.Context, roundID string) ([]*schema.Putt, error) {
	q := url.Values{}
	q.Set("round_id", "eq."+roundID)
	q.Set("order", "putt_number.asc")

	var putts []*schema.Putt
	if err := c.get(ctx, "putts", q, &putts); err != nil {
		return nil, err
	}
	return putts, nil
}

// CoursesSince fetches the user's courses updated strictly after since.
func (c *Client) CoursesSince(ctx context.Context, userID string, since time.Time) ([]*schema.Course, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("updated_at", "gt."+since.UTC().Format(time.RFC3339))
	q.Set("order", "updated_at.asc")

	var courses []*schema.Course
	if err := c.get(ctx, "courses", q, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// UpsertRounds writes rounds to the remote store, merging on id.
func (c *Client) UpsertRounds(ctx context.Context, rounds []*schema.Round) error {
	return c.upsert(ctx, "rounds", rounds)
}

// UpsertHoles writes holes to the remote store, merging on id.
func (c *Client) UpsertHoles(ctx context.Context, holes []*schema.Hole) error {
	return c.upsert(ctx, "holes", holes)
}

// UpsertPutts writes putts to the remote store, merging on id.
func (c *Client) UpsertPutts(ctx context.Context, putts []*schema.Putt) error {
	return c.upsert(ctx, "putts", putts)
}

// UpsertCourses writes courses to the remote store, merging on id.
func (c *Client) UpsertCourses(ctx context.Context, courses []*schema.Course) error {
	return c.upsert(ctx, "courses", courses)
}

func (c *Client) get(ctx context.Context, table string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+table+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", table, err)
	}
	return nil
}

// upsert POSTs rows to a table with merge-duplicates semantics keyed on
// id. An empty batch is a no-op.
func (c *Client) upsert(ctx context.Context, table string, rows any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal %s rows: %w", table, err)
	}
	if string(body) == "null" || string(body) == "[]" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+table+"?on_conflict=id", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Status: resp.StatusCode, Body: string(body)}
}
