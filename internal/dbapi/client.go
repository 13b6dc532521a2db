// Package dbapi talks to the upstream database/identity service that owns
// scan results, auth tokens, and machine registration. Every call is
// wrapped in a circuit breaker so a degraded upstream fails fast instead of
// piling up stuck goroutines on the recognition coordinator.
//
// Two different credentials flow through this client: a caller's own
// bearer token, forwarded verbatim to CheckAuth/IsInternalAuth so the
// upstream can answer "is this specific caller allowed", and this
// service's own outbound credential (obtained via Login, held by the
// credential cache) used for every result-store call this service makes
// on its own behalf.
package dbapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/metrics"
)

// Config configures the client against the upstream base URL.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client is the adapter every coordinator and handler path calls through;
// it never exposes the raw *http.Client so every outbound call is forced
// through the breaker.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New builds a Client with a circuit breaker tuned to trip after five
// consecutive failures and probe again after thirty seconds.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	settings := gobreaker.Settings{
		Name:        "dbapi",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("dbapi: circuit breaker state change")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

type response struct {
	body   []byte
	status int
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, authHeader string) (response, error) {
	var status int

	result, err := c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("dbapi: building request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("dbapi: request failed: %w", err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("dbapi: reading response: %w", err)
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("dbapi: upstream returned %d", resp.StatusCode)
		}
		return respBody, nil
	})
	if err != nil {
		return response{}, err
	}
	return response{body: result, status: status}, nil
}

// CheckConnection reports whether the upstream is reachable at all,
// independent of any credential.
func (c *Client) CheckConnection(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/db/v1/scan/CanConnect", nil, "")
	return err
}

// CheckAuth forwards a caller's own bearer token to the upstream and
// reports whether it is accepted as a valid credential. The token's
// signature is never checked locally — this call is the verification.
func (c *Client) CheckAuth(ctx context.Context, bearer string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/db/v1/scan/CanAuthenticate", nil, "Bearer "+bearer)
	if err != nil {
		return false, err
	}
	return resp.status == http.StatusOK, nil
}

// IsInternalAuth reports whether bearer belongs to this service's own
// worker fleet rather than an end-user token.
func (c *Client) IsInternalAuth(ctx context.Context, bearer string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/db/v1/scan/IsInternalToken", nil, "Bearer "+bearer)
	if err != nil {
		return false, err
	}
	return resp.status == http.StatusOK, nil
}

// Login exchanges the long-lived API key for a fresh bearer token, used by
// the credential cache's refresh loop. The reply nests the token one level
// deep: {"Token":{"Token":"..."}}.
func (c *Client) Login(ctx context.Context, apiKey string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/db/v1/scan/login", nil, "Token "+apiKey)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Token struct {
			Token string `json:"Token"`
		} `json:"Token"`
	}
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return "", fmt.Errorf("dbapi: decoding login response: %w", err)
	}
	if parsed.Token.Token == "" {
		return "", fmt.Errorf("dbapi: login response carried no token")
	}
	return parsed.Token.Token, nil
}

// GetScan retrieves the stored recognition result for fingerprint using
// this service's own bearer token, if any. A nil, nil return means the
// upstream has no record for that key.
func (c *Client) GetScan(ctx context.Context, bearer, fingerprint string) (*media.RecognitionResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/db/v1/scan/get="+fingerprint, nil, "Bearer "+bearer)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, nil
	}

	var result media.RecognitionResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("dbapi: decoding scan result: %w", err)
	}
	return &result, nil
}

// GetScanRaw retrieves the stored recognition result for fingerprint
// without decoding it, so a cache-hit caller can hand a client back the
// exact bytes the upstream holds rather than a re-marshaled copy. found is
// false only on a genuine 404; any other failure is returned as err so the
// caller can decide whether to treat it as a miss.
func (c *Client) GetScanRaw(ctx context.Context, bearer, fingerprint string) (raw []byte, found bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, "/db/v1/scan/get="+fingerprint, nil, "Bearer "+bearer)
	if err != nil {
		return nil, false, err
	}
	if resp.status == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, false, fmt.Errorf("dbapi: upstream returned %d for scan lookup", resp.status)
	}
	return resp.body, true, nil
}

// SetScan upserts a recognition result for fingerprint. A 401 from the
// upstream surfaces as ErrUnauthorized and any other non-2xx status as a
// plain error; the worker surface answers both with 500 "please try again".
func (c *Client) SetScan(ctx context.Context, bearer string, result media.RecognitionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("dbapi: encoding scan result: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/db/v1/scan/update", payload, "Bearer "+bearer)
	if err != nil {
		return err
	}
	if resp.status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.status < 200 || resp.status >= 300 {
		return fmt.Errorf("dbapi: upstream rejected scan update with status %d", resp.status)
	}
	return nil
}

// DeleteScan removes the stored result for fingerprint, used by the
// coordinator's self-healing path when a stored result fails validation.
func (c *Client) DeleteScan(ctx context.Context, bearer, fingerprint string) error {
	_, err := c.do(ctx, http.MethodDelete, "/db/v1/scan/delete="+fingerprint, nil, "Bearer "+bearer)
	return err
}
