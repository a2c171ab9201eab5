// Package ccms fetches remote artifact detail from the central content
// service. Responses are cached in redis under a short TTL; failures are
// never cached, so a flapping content service heals on its own.
package ccms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/httpx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// Child is one ordered child inside a remote artifact detail.
type Child struct {
	Kind         types.ArtifactKind  `json:"kind"`
	ID           uuid.UUID           `json:"id"`
	Sequence     int                 `json:"sequence"`
	IsMandatory  bool                `json:"is_mandatory"`
	Type         types.SubmoduleType `json:"type,omitempty"`
	DurationSecs int                 `json:"duration_secs,omitempty"`
	IsLockActive bool                `json:"is_lock_active,omitempty"`
	UnlockDate   *time.Time          `json:"unlock_date,omitempty"`
}

// Detail is the normalized shape of a remote artifact. Fields that do not
// apply to a kind stay zero.
type Detail struct {
	Kind                     types.ArtifactKind   `json:"kind"`
	ID                       uuid.UUID            `json:"id"`
	Name                     string               `json:"name"`
	Code                     string               `json:"code"`
	Proficiency              types.Proficiency    `json:"proficiency"`
	IsDependenciesSequential bool                 `json:"is_dependencies_sequential"`
	IsCertificateEnabled     bool                 `json:"is_certificate_enabled"`
	Type                     types.SubmoduleType  `json:"type,omitempty"`
	EvaluationType           types.EvaluationType `json:"evaluation_type,omitempty"`
	DurationSecs             int                  `json:"duration_secs,omitempty"`
	AuthorEmails             string               `json:"author_emails,omitempty"`
	AllowedAttempts          *int                 `json:"allowed_attempts,omitempty"`
	PassPercentage           float64              `json:"pass_percentage,omitempty"`
	Children                 []Child              `json:"children,omitempty"`
}

type Client interface {
	FetchDetail(ctx context.Context, ref types.ArtifactRef) (*Detail, error)
}

type Config struct {
	BaseURL  string
	Token    string
	CacheTTL time.Duration
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:  envutil.String("CCMS_BASE_URL", ""),
		Token:    envutil.String("CCMS_API_TOKEN", ""),
		CacheTTL: envutil.DurationSeconds("CCMS_CACHE_TTL_SECONDS", 5*time.Minute),
	}
	if cfg.BaseURL == "" {
		return Config{}, apperr.New(apperr.KindConfigMissing, "missing env var CCMS_BASE_URL")
	}
	return cfg, nil
}

type client struct {
	log   *logger.Logger
	cfg   Config
	http  *http.Client
	cache *redis.Client
}

// NewClient wires the content service client. cache may be nil, in which
// case every fetch goes to the wire.
func NewClient(log *logger.Logger, cfg Config, cache *redis.Client) Client {
	return &client{
		log:   log.With("client", "CCMS"),
		cfg:   cfg,
		http:  &http.Client{Timeout: 15 * time.Second},
		cache: cache,
	}
}

func cacheKey(ref types.ArtifactRef) string {
	return fmt.Sprintf("ccms:detail:%s:%s", ref.Kind, ref.ID)
}

func (c *client) FetchDetail(ctx context.Context, ref types.ArtifactRef) (*Detail, error) {
	slug := ref.Kind.RemoteSlug()
	if slug == "" {
		return nil, apperr.Newf(apperr.KindValidation, "kind %q has no remote representation", ref.Kind)
	}

	if c.cache != nil {
		raw, err := c.cache.Get(ctx, cacheKey(ref)).Bytes()
		if err == nil {
			var d Detail
			if jsonErr := json.Unmarshal(raw, &d); jsonErr == nil {
				return &d, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", "key", cacheKey(ref), "error", err)
		}
	}

	d, err := c.fetchRemote(ctx, slug, ref)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, jsonErr := json.Marshal(d); jsonErr == nil {
			if err := c.cache.Set(ctx, cacheKey(ref), raw, c.cfg.CacheTTL).Err(); err != nil {
				c.log.Warn("cache write failed", "key", cacheKey(ref), "error", err)
			}
		}
	}
	return d, nil
}

func (c *client) fetchRemote(ctx context.Context, slug string, ref types.ArtifactRef) (*Detail, error) {
	url := fmt.Sprintf("%s/api/v1/%s/detail/%s/", c.cfg.BaseURL, slug, ref.ID)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(httpx.JitterSleep(time.Duration(attempt) * time.Second)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if httpx.IsRetryableError(err) {
				lastErr = err
				continue
			}
			return nil, apperr.Wrap(apperr.KindProviderUnavailable, "content service unreachable", err)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, apperr.Newf(apperr.KindNotFound, "remote artifact %s not found", ref)
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var d Detail
			if err := json.Unmarshal(body, &d); err != nil {
				return nil, fmt.Errorf("decode content service response: %w", err)
			}
			if d.ID == uuid.Nil {
				d.ID = ref.ID
			}
			d.Kind = ref.Kind
			return &d, nil
		case httpx.IsRetryableHTTPStatus(resp.StatusCode):
			lastErr = &httpx.StatusError{Status: resp.StatusCode, Body: string(body)}
			continue
		default:
			return nil, apperr.Wrap(apperr.KindProviderUnavailable, "content service error",
				&httpx.StatusError{Status: resp.StatusCode, Body: string(body)})
		}
	}
	return nil, apperr.Wrap(apperr.KindProviderUnavailable, "content service retries exhausted", lastErr)
}
