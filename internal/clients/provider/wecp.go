package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/httpx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type WECPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func WECPConfigFromEnv() (WECPConfig, error) {
	cfg := WECPConfig{
		BaseURL: envutil.String("WECP_BASE_URL", ""),
		APIKey:  envutil.String("WECP_API_KEY", ""),
		Timeout: envutil.DurationSeconds("WECP_TIMEOUT_SECONDS", 30*time.Second),
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return WECPConfig{}, apperr.New(apperr.KindConfigMissing, "missing WECP_BASE_URL or WECP_API_KEY")
	}
	return cfg, nil
}

// wecpClient only sends the assessment reference and candidate email; the
// platform owns attempt policy and returns a single invite link.
type wecpClient struct {
	log  *logger.Logger
	cfg  WECPConfig
	http *http.Client
}

func NewWECP(log *logger.Logger, cfg WECPConfig) Provider {
	return &wecpClient{
		log:  log.With("client", "WECP"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type wecpInviteRequest struct {
	AssessmentID string   `json:"assessmentId"`
	Candidates   []string `json:"candidates"`
}

type wecpInviteResponse struct {
	InviteID   string `json:"inviteId"`
	InviteLink string `json:"inviteLink"`
}

func (c *wecpClient) Schedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	payload := wecpInviteRequest{
		AssessmentID: req.ProviderRef,
		Candidates:   []string{req.UserEmail},
	}
	var out wecpInviteResponse
	if err := c.do(ctx, http.MethodPost, "/api/assessments/invite", payload, &out); err != nil {
		return nil, apperr.ProviderUnavailable("wecp", err)
	}
	return &ScheduleResult{ScheduleID: 0, ScheduleLink: out.InviteLink, InviteID: out.InviteID}, nil
}

type wecpCandidateResult struct {
	AttemptNumber  int        `json:"attemptNumber"`
	Status         string     `json:"status"`
	DurationSecs   int        `json:"durationSeconds"`
	TotalScore     float64    `json:"totalScore"`
	MaxScore       float64    `json:"maxScore"`
	QuestionsTotal int        `json:"questionsTotal"`
	QuestionsDone  int        `json:"questionsAttempted"`
	StartedAt      *time.Time `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt"`
}

func (c *wecpClient) FetchResults(ctx context.Context, _ int64, inviteID, userEmail string) ([]Attempt, error) {
	if inviteID == "" {
		return nil, apperr.Validation("wecp result fetch requires an invite id")
	}
	path := fmt.Sprintf("/api/invites/%s/results", inviteID)
	var raw []wecpCandidateResult
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, apperr.ProviderUnavailable("wecp", err)
	}
	out := make([]Attempt, 0, len(raw))
	for i, r := range raw {
		score := 0.0
		if r.MaxScore > 0 {
			score = r.TotalScore / r.MaxScore * 100
		}
		number := r.AttemptNumber
		if number == 0 {
			number = i + 1
		}
		out = append(out, Attempt{
			Number:            number,
			Status:            r.Status,
			DurationSecs:      r.DurationSecs,
			TotalQuestions:    r.QuestionsTotal,
			AnsweredQuestions: r.QuestionsDone,
			ScorePercentage:   score,
			StartedAt:         r.StartedAt,
			EndedAt:           r.FinishedAt,
		})
	}
	return out, nil
}

// GrantExtraAttempt has no WECP API; attempts are bounded locally and a new
// invite is issued when the learner restarts.
func (c *wecpClient) GrantExtraAttempt(ctx context.Context, _ int64, _ string, _ int) error {
	return nil
}

func (c *wecpClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
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
		req.Header.Set("x-api-key", c.cfg.APIKey)

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
