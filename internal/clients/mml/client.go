// Package mml provisions hands-on lab virtual machines.
package mml

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

type Lab struct {
	VMURL   string            `json:"vm_url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type Client interface {
	ProvisionLab(ctx context.Context, userEmail, vmName, skuID string) (*Lab, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL: envutil.String("MML_BASE_URL", ""),
		APIKey:  envutil.String("MML_API_KEY", ""),
		Timeout: envutil.DurationSeconds("MML_TIMEOUT_SECONDS", 60*time.Second),
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return Config{}, apperr.New(apperr.KindConfigMissing, "missing MML_BASE_URL or MML_API_KEY")
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
		log:  log.With("client", "MML"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type provisionRequest struct {
	UserEmail string `json:"userEmail"`
	VMName    string `json:"vmName"`
	SkuID     string `json:"skuId"`
}

type provisionResponse struct {
	VMURL   string            `json:"vmUrl"`
	Headers map[string]string `json:"headers"`
}

func (c *client) ProvisionLab(ctx context.Context, userEmail, vmName, skuID string) (*Lab, error) {
	if skuID == "" {
		return nil, apperr.New(apperr.KindConfigMissing, "lab artifact has no sku")
	}
	body, err := json.Marshal(provisionRequest{UserEmail: userEmail, VMName: vmName, SkuID: skuID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/labs/provision", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.ProviderUnavailable("mml", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.ProviderUnavailable("mml", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.ProviderUnavailable("mml", &httpx.StatusError{Status: resp.StatusCode, Body: string(respBody)})
	}
	var out provisionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperr.ProviderUnavailable("mml", err)
	}
	return &Lab{VMURL: out.VMURL, Headers: out.Headers}, nil
}
