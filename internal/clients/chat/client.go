// Package chat registers admitted learners on the discussion platform so
// course forums are ready by the time they open the artifact. Registration is
// best-effort; failures are logged and retried by the job queue.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/httpx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Client interface {
	RegisterUser(ctx context.Context, email, fullName string) error
	JoinChannel(ctx context.Context, email, channel string) error
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL: envutil.String("CHAT_BASE_URL", ""),
		Token:   envutil.String("CHAT_API_TOKEN", ""),
		Timeout: envutil.DurationSeconds("CHAT_TIMEOUT_SECONDS", 15*time.Second),
	}
	if cfg.BaseURL == "" {
		return Config{}, apperr.New(apperr.KindConfigMissing, "missing env var CHAT_BASE_URL")
	}
	return cfg, nil
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *logger.Logger, cfg Config) Client {
	return &client{
		log:  log.With("client", "Chat"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *client) RegisterUser(ctx context.Context, email, fullName string) error {
	return c.post(ctx, "/api/users/register", map[string]string{
		"email": email,
		"name":  fullName,
	})
}

func (c *client) JoinChannel(ctx context.Context, email, channel string) error {
	return c.post(ctx, "/api/channels/join", map[string]string{
		"email":   email,
		"channel": channel,
	})
}

func (c *client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.ProviderUnavailable("chat", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.ProviderUnavailable("chat", &httpx.StatusError{Status: resp.StatusCode, Body: string(respBody)})
	}
	return nil
}
