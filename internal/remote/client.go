// Package remote implements the client for the remote synchronization
// backend: JSON over REST with bearer-token authorization. Failures are
// classified into transient and permanent network errors so the retry queue
// can decide what to replay.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/finledger/syncengine/internal/models"
	"github.com/finledger/syncengine/pkg/api"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP implementation of Backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ Backend = (*Client)(nil)

// NewClient creates a backend client for the given base URL and bearer
// token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Keep authorization across same-host redirects.
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// FetchAll returns a snapshot of every remote record.
func (c *Client) FetchAll(ctx context.Context) (models.Snapshot, error) {
	var resp api.FetchResponse
	if err := c.doRequest(ctx, "fetch_all", http.MethodGet, "/api/v1/records", nil, &resp); err != nil {
		return nil, err
	}

	snapshot := make(models.Snapshot, 0, len(resp.Records))
	for _, wire := range resp.Records {
		snapshot = append(snapshot, recordFromWire(wire))
	}
	return snapshot, nil
}

// Upsert creates or replaces one record on the backend.
func (c *Client) Upsert(ctx context.Context, record *models.SyncableRecord) error {
	req := api.UpsertRequest{Record: recordToWire(record)}
	path := "/api/v1/records/" + record.ID

	var resp api.UpsertResponse
	return c.doRequest(ctx, "upsert", http.MethodPut, path, req, &resp)
}

// Ping validates reachability and session authorization. An expired token
// fails fast, before any network round trip.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkTokenExpiry(); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if err := c.doRequest(ctx, "ping", http.MethodGet, "/api/v1/ping", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return nil
}

// checkTokenExpiry inspects the bearer token's exp claim without verifying
// the signature; verification is the backend's job, the client only avoids
// a doomed round trip.
func (c *Client) checkTokenExpiry() error {
	if c.token == "" {
		return errors.New("no access token configured")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(c.token, claims); err != nil {
		// Not a JWT; let the backend judge the token.
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("access token expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}

// doRequest performs one HTTP round trip and classifies failures.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures (connection refused, timeout, DNS) are
		// transient unless the context was cancelled outright.
		return &NetworkError{Op: op, Transient: transientTransportError(err), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Transient: true, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			cause = fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Message)
		}
		return &NetworkError{
			Op:        op,
			Status:    resp.StatusCode,
			Transient: transientStatus(resp.StatusCode),
			Err:       cause,
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}

// transientStatus reports whether an HTTP status is worth retrying: server
// errors and rate limiting are, client errors (auth, malformed payload) are
// not.
func transientStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

// transientTransportError distinguishes recoverable transport failures
// (timeouts, connection refused, DNS) from deliberate cancellation.
func transientTransportError(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func recordToWire(rec *models.SyncableRecord) api.Record {
	return api.Record{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Payload:    rec.Payload,
		Deleted:    rec.Deleted,
		CreatedAt:  rec.CreatedAt,
		ModifiedAt: rec.ModifiedAt,
	}
}

func recordFromWire(wire api.Record) *models.SyncableRecord {
	return &models.SyncableRecord{
		ID:         wire.ID,
		Kind:       wire.Kind,
		Payload:    wire.Payload,
		Deleted:    wire.Deleted,
		CreatedAt:  wire.CreatedAt,
		ModifiedAt: wire.ModifiedAt,
	}
}
