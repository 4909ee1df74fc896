package mapservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
	"github.com/zatekoja/waittime/pkg/retry"
)

// Client fetches facility (POI) definitions from the venue map service
type Client interface {
	ListPOIs(ctx context.Context) ([]POI, error)
	GetPOI(ctx context.Context, id string) (*POI, error)
	Health(ctx context.Context) bool
}

// POI is a map node carrying queue parameters. The map service sends
// further layout fields (x, y, level) which are ignored here.
type POI struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	NumServers  int     `json:"num_servers"`
	ServiceRate float64 `json:"service_rate"`
}

// HTTPClient talks to the map service over HTTP behind a circuit breaker
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retry      retry.Config
}

// Option customises an HTTPClient
type Option func(*HTTPClient)

// WithRetry overrides the retry policy
func WithRetry(cfg retry.Config) Option {
	return func(c *HTTPClient) { c.retry = cfg }
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewClient creates a map service client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 4
	retryCfg.MaxTotalTimeout = 30 * time.Second

	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retryCfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mapservice",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// a 4xx means the service is up and answering
			IsSuccessful: func(err error) bool {
				var se *statusError
				return err == nil || (errors.As(err, &se) && se.code < 500)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPOIs fetches every POI known to the map service
func (c *HTTPClient) ListPOIs(ctx context.Context) ([]POI, error) {
	var pois []POI
	if err := c.get(ctx, c.baseURL+"/pois", &pois); err != nil {
		return nil, err
	}
	log.Info().Int("count", len(pois)).Msg("Fetched POIs from map service")
	return pois, nil
}

// GetPOI fetches one POI
func (c *HTTPClient) GetPOI(ctx context.Context, id string) (*POI, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("poi id is required")
	}
	out := &POI{}
	if err := c.get(ctx, fmt.Sprintf("%s/pois/%s", c.baseURL, url.PathEscape(id)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the map service answers its health endpoint
func (c *HTTPClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// State returns the circuit breaker state
func (c *HTTPClient) State() gobreaker.State {
	return c.breaker.State()
}

// get retries transient failures; client errors and an open breaker are final.
func (c *HTTPClient) get(ctx context.Context, endpoint string, out interface{}) error {
	err := retry.Do(ctx, c.retry, "mapservice", func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doJSON(ctx, http.MethodGet, endpoint, nil, out)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return retry.Permanent(err)
		}
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Str("url", endpoint).Msg("Map service request failed")
	})
	if err == nil {
		return nil
	}

	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return apperrors.NewNotFoundError("poi not found in map service")
	}
	return apperrors.NewExternalError("map service unavailable", err)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("map service returned status %d", e.code)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
