package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

// BreakerConfig tunes the circuit breaker wrapped around store calls
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the standard breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// HTTPConfig configures an HTTPStore
type HTTPConfig struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	MaxContentBytes int64
	Breaker         BreakerConfig
}

// HTTPStore reads documents from an HTTP object store:
//
//	GET {base}/files/{id}          metadata as JSON
//	GET {base}/files/{id}/content  raw body
//	GET {base}/files?...           {"files": [...]}
type HTTPStore struct {
	base     *url.URL
	token    string
	maxBytes int64
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewHTTPStore creates a store client for cfg.BaseURL
func NewHTTPStore(cfg HTTPConfig, logger *zap.Logger) (*HTTPStore, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid store base url %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}

	s := &HTTPStore{
		base:     base,
		token:    cfg.Token,
		maxBytes: cfg.MaxContentBytes,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}

	bc := cfg.Breaker
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-store",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Missing or forbidden files say nothing about store health
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, types.ErrTransient)
		},
	})

	return s, nil
}

// Metadata returns the file's metadata
func (s *HTTPStore) Metadata(ctx context.Context, fileID string) (*FileInfo, error) {
	body, err := s.get(ctx, "/files/"+url.PathEscape(fileID), nil, 0)
	if err != nil {
		return nil, err
	}

	var info FileInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", fileID, err)
	}
	return &info, nil
}

// Content returns the raw file body
func (s *HTTPStore) Content(ctx context.Context, fileID string) ([]byte, error) {
	return s.get(ctx, "/files/"+url.PathEscape(fileID)+"/content", nil, s.maxBytes)
}

// List returns files matching q
func (s *HTTPStore) List(ctx context.Context, q Query) ([]FileInfo, error) {
	params := url.Values{}
	if q.FolderID != "" {
		params.Set("folder_id", q.FolderID)
	}
	if q.NameContains != "" {
		params.Set("name_contains", q.NameContains)
	}
	for _, mt := range q.MimeTypes {
		params.Add("mime_type", mt)
	}
	params.Set("max_results", strconv.Itoa(q.Limit()))
	if q.IncludeTrashed {
		params.Set("include_trashed", "true")
	}

	body, err := s.get(ctx, "/files", params, 0)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Files []FileInfo `json:"files"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode file listing: %w", err)
	}
	return resp.Files, nil
}

// State reports the circuit breaker state
func (s *HTTPStore) State() string {
	return s.breaker.State().String()
}

func (s *HTTPStore) get(ctx context.Context, path string, params url.Values, limit int64) ([]byte, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.do(ctx, path, params, limit)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (s *HTTPStore) do(ctx context.Context, path string, params url.Values, limit int64) ([]byte, error) {
	u := *s.base
	u.Path += path
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", types.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", types.ErrTransient, err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (limit %d bytes)", types.ErrTooLarge, limit)
	}
	return body, nil
}

// classifyStatus maps an HTTP status to the store error taxonomy
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return types.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return types.ErrPermissionDenied
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d", types.ErrTransient, code)
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}
