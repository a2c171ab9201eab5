package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/httpx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type YakshaConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func YakshaConfigFromEnv() (YakshaConfig, error) {
	cfg := YakshaConfig{
		BaseURL: envutil.String("YAKSHA_BASE_URL", ""),
		APIKey:  envutil.String("YAKSHA_API_KEY", ""),
		Timeout: envutil.DurationSeconds("YAKSHA_TIMEOUT_SECONDS", 30*time.Second),
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return YakshaConfig{}, apperr.New(apperr.KindConfigMissing, "missing YAKSHA_BASE_URL or YAKSHA_API_KEY")
	}
	return cfg, nil
}

type yakshaClient struct {
	log  *logger.Logger
	cfg  YakshaConfig
	http *http.Client
}

func NewYaksha(log *logger.Logger, cfg YakshaConfig) Provider {
	return &yakshaClient{
		log:  log.With("client", "Yaksha"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type yakshaScheduleRequest struct {
	AssessmentID            string          `json:"assessmentId"`
	UserEmail               string          `json:"userEmailAddress"`
	UserName                string          `json:"userName"`
	TotalAttempts           int             `json:"totalAttempts"`
	PassPercentage          float64         `json:"passPercentage"`
	Duration                int             `json:"duration"`
	NegativeScorePercentage float64         `json:"negativeScorePercentage"`
	EnableShuffling         bool            `json:"enableShuffling"`
	ResultType              string          `json:"resultType,omitempty"`
	RedirectURL             string          `json:"redirectUrl,omitempty"`
	EnableProctoring        bool            `json:"enableProctoring"`
	EnableAeyeProctoring    bool            `json:"enableAeyeProctoring"`
	ProctoringConfig        json.RawMessage `json:"proctoringConfig,omitempty"`
	EnablePlagiarism        bool            `json:"enablePlagiarism"`
	ExternalConfigArgs      string          `json:"externalScheduleConfigArgs"`
}

type yakshaScheduleResponse struct {
	ScheduleID   int64  `json:"scheduleId"`
	ScheduleLink string `json:"scheduleLink"`
}

func (c *yakshaClient) Schedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	args, err := req.Config.ConfigArgs.Encode()
	if err != nil {
		return nil, err
	}
	payload := yakshaScheduleRequest{
		AssessmentID:            req.ProviderRef,
		UserEmail:               req.UserEmail,
		UserName:                req.UserName,
		TotalAttempts:           req.Config.TotalAttempts,
		PassPercentage:          req.Config.PassPercentage,
		Duration:                req.Config.DurationMinutes,
		NegativeScorePercentage: req.Config.NegativeScorePercentage,
		EnableShuffling:         req.Config.EnableShuffling,
		ResultType:              req.Config.ResultType,
		RedirectURL:             req.Config.RedirectURL,
		EnableProctoring:        req.Config.EnableProctoring,
		EnableAeyeProctoring:    req.Config.EnableAeyeProctoring,
		ProctoringConfig:        req.Config.ProctoringConfig,
		EnablePlagiarism:        req.Config.EnablePlagiarism,
		ExternalConfigArgs:      string(args),
	}

	var out yakshaScheduleResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/schedules", payload, &out); err != nil {
		return nil, apperr.ProviderUnavailable("yaksha", err)
	}
	return &ScheduleResult{ScheduleID: out.ScheduleID, ScheduleLink: out.ScheduleLink}, nil
}

type yakshaAttempt struct {
	AttemptNumber     int        `json:"attemptNumber"`
	Status            string     `json:"status"`
	Duration          int        `json:"duration"`
	TotalQuestions    int        `json:"totalQuestions"`
	AnsweredQuestions int        `json:"answeredQuestions"`
	ScorePercentage   float64    `json:"scorePercentage"`
	ActualStart       *time.Time `json:"actualStart"`
	ActualEnd         *time.Time `json:"actualEnd"`
}

func (c *yakshaClient) FetchResults(ctx context.Context, scheduleID int64, _ string, userEmail string) ([]Attempt, error) {
	path := fmt.Sprintf("/api/v2/schedules/%d/results?email=%s", scheduleID, url.QueryEscape(userEmail))
	var raw []yakshaAttempt
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, apperr.ProviderUnavailable("yaksha", err)
	}
	out := make([]Attempt, 0, len(raw))
	for _, a := range raw {
		out = append(out, Attempt{
			Number:            a.AttemptNumber,
			Status:            a.Status,
			DurationSecs:      a.Duration,
			TotalQuestions:    a.TotalQuestions,
			AnsweredQuestions: a.AnsweredQuestions,
			ScorePercentage:   a.ScorePercentage,
			StartedAt:         a.ActualStart,
			EndedAt:           a.ActualEnd,
		})
	}
	return out, nil
}

func (c *yakshaClient) GrantExtraAttempt(ctx context.Context, scheduleID int64, userEmail string, delta int) error {
	payload := map[string]interface{}{
		"userEmailAddress":   userEmail,
		"additionalAttempts": delta,
	}
	path := fmt.Sprintf("/api/v2/schedules/%d/attempts", scheduleID)
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return apperr.ProviderUnavailable("yaksha", err)
	}
	return nil
}

func (c *yakshaClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(httpx.JitterSleep(time.Duration(attempt) * time.Second)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			if httpx.IsRetryableError(err) {
				lastErr = err
				continue
			}
			return err
		}
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			return json.Unmarshal(respBody, out)
		}
		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			lastErr = &httpx.StatusError{Status: resp.StatusCode, Body: string(respBody)}
			continue
		}
		return &httpx.StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return lastErr
}
