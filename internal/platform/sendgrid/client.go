package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/httpx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// Client sends transactional mail through the SendGrid v3 mail-send API.
type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	MaxRetries       int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:          envutil.String("SENDGRID_BASE_URL", ""),
		DefaultFromEmail: envutil.String("SENDGRID_FROM_EMAIL", ""),
		DefaultFromName:  envutil.String("SENDGRID_FROM_NAME", ""),
		Timeout:          envutil.DurationSeconds("SENDGRID_TIMEOUT_SECONDS", 30*time.Second),
		MaxRetries:       envutil.Int("SENDGRID_MAX_RETRIES", 4),
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	return &client{
		log:        log.With("client", "SendGridClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type SendEmailRequest struct {
	From                EmailAddress
	To                  []EmailAddress
	CC                  []EmailAddress
	Subject             string
	Text                string
	HTML                string
	TemplateID          string
	DynamicTemplateData map[string]any
	Categories          []string
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             EmailAddress      `json:"from"`
	Subject          string            `json:"subject,omitempty"`
	Content          []mailContent     `json:"content,omitempty"`
	TemplateID       string            `json:"template_id,omitempty"`
	Categories       []string          `json:"categories,omitempty"`
}

type personalization struct {
	To                  []EmailAddress `json:"to"`
	Cc                  []EmailAddress `json:"cc,omitempty"`
	DynamicTemplateData map[string]any `json:"dynamic_template_data,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if strings.TrimSpace(req.From.Email) == "" {
		req.From.Email = c.cfg.DefaultFromEmail
		req.From.Name = c.cfg.DefaultFromName
	}
	if strings.TrimSpace(req.From.Email) == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}

	var contents []mailContent
	if t := strings.TrimSpace(req.Text); t != "" {
		contents = append(contents, mailContent{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(req.HTML); h != "" {
		contents = append(contents, mailContent{Type: "text/html", Value: h})
	}
	if req.TemplateID == "" {
		if strings.TrimSpace(req.Subject) == "" {
			return nil, fmt.Errorf("sendgrid: Subject required (unless using TemplateID)")
		}
		if len(contents) == 0 {
			return nil, fmt.Errorf("sendgrid: Text or HTML content required (unless using TemplateID)")
		}
	}

	p := personalization{To: req.To}
	if len(req.CC) > 0 {
		p.Cc = req.CC
	}
	if len(req.DynamicTemplateData) > 0 {
		p.DynamicTemplateData = req.DynamicTemplateData
	}

	body := mailSendRequest{
		Personalizations: []personalization{p},
		From:             req.From,
		Subject:          req.Subject,
		Content:          contents,
		TemplateID:       req.TemplateID,
		Categories:       req.Categories,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/v3/mail/send"
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(httpx.JitterSleep(time.Duration(attempt) * time.Second)):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			if httpx.IsRetryableError(err) {
				continue
			}
			return nil, err
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &SendEmailResult{
				StatusCode: resp.StatusCode,
				MessageID:  resp.Header.Get("X-Message-Id"),
			}, nil
		}

		lastErr = &httpx.StatusError{Status: resp.StatusCode, Body: string(respBody)}
		if !httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			break
		}
	}
	c.log.Error("mail send failed", "error", lastErr)
	return nil, fmt.Errorf("sendgrid: send failed: %w", lastErr)
}
