// Package registry provides the HTTP client for the infrastructure registry.
// All mutations go through a shared rate limiter and a retry policy with
// exponential backoff; the registry's PUT-style upsert semantics make every
// call safe to repeat.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/infrastructure/config"
)

type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

func NewClient(cfg config.RegistryConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerSecond
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		attempts: cfg.RetryAttempts,
		backoff:  time.Duration(cfg.BackoffFactor * float64(time.Second)),
		logger:   logger,
	}
}

// upsertBody is the wire form of one registry object.
type upsertBody struct {
	Kind       string            `json:"kind"`
	Key        string            `json:"key"`
	Parent     string            `json:"parent,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Sources    []string          `json:"sources"`
}

func (c *Client) Create(ctx context.Context, ent *entity.LogicalEntity) error {
	return c.upsert(ctx, ent)
}

func (c *Client) Update(ctx context.Context, ent *entity.LogicalEntity) error {
	return c.upsert(ctx, ent)
}

func (c *Client) upsert(ctx context.Context, ent *entity.LogicalEntity) error {
	attrs := make(map[string]string, len(ent.Attributes))
	for name, v := range ent.Attributes {
		attrs[name] = v.Value
	}
	body := upsertBody{
		Kind:       ent.Kind.String(),
		Key:        string(ent.Key),
		Parent:     string(ent.ParentKey),
		Attributes: attrs,
		Sources:    ent.Sources,
	}
	return c.do(ctx, http.MethodPut, c.objectPath(ent.Kind, ent.Key), body)
}

func (c *Client) Retire(ctx context.Context, kind entity.Kind, key entity.NaturalKey) error {
	body := map[string]any{"status": "retired", "tags": []string{"retired"}}
	return c.do(ctx, http.MethodPatch, c.objectPath(kind, key), body)
}

func (c *Client) Delete(ctx context.Context, kind entity.Kind, key entity.NaturalKey) error {
	return c.do(ctx, http.MethodDelete, c.objectPath(kind, key), nil)
}

func (c *Client) objectPath(kind entity.Kind, key entity.NaturalKey) string {
	return fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, collection(kind), url.PathEscape(string(key)))
}

func collection(kind entity.Kind) string {
	switch kind {
	case entity.KindDevice:
		return "devices"
	case entity.KindInterface:
		return "interfaces"
	case entity.KindVLAN:
		return "vlans"
	case entity.KindPrefix:
		return "prefixes"
	case entity.KindIPAddress:
		return "ip-addresses"
	default:
		return "objects"
	}
}

// do performs one call with rate limiting and retries. Client errors other
// than 408 and 429 are permanent and returned without retrying; a 404 on
// DELETE counts as success so interrupted delete sequences can be replayed.
func (c *Client) do(ctx context.Context, method, target string, body any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Token "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Debug("registry call failed",
				zap.String("method", method),
				zap.String("url", target),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusNotFound && method == http.MethodDelete:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout &&
			resp.StatusCode != http.StatusTooManyRequests:
			return fmt.Errorf("registry rejected %s %s: %d %s", method, target, resp.StatusCode, strings.TrimSpace(string(detail)))
		default:
			lastErr = fmt.Errorf("registry %s %s: %d %s", method, target, resp.StatusCode, strings.TrimSpace(string(detail)))
		}
	}
	return fmt.Errorf("registry call failed after %d attempts: %w", c.attempts, lastErr)
}
