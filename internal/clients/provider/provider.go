// Package provider adapts the external assessment platforms behind one
// gateway interface. Selection is by the assessment's provider type.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
)

// ConfigArgs is the versioned envelope embedded into a schedule so results
// arriving later by webhook can be routed back to the right tenant and
// tracker. It must round-trip byte-for-byte through the provider.
type ConfigArgs struct {
	V              int                  `json:"v"`
	TenantID       string               `json:"tenant_id"`
	LearningKind   types.ArtifactKind   `json:"learning_kind"`
	LearningID     uuid.UUID            `json:"learning_id"`
	AssessmentKind types.AssessmentKind `json:"assessment_kind"`
	AssessmentID   uuid.UUID            `json:"assessment_id"`
	IsExternal     bool                 `json:"is_external"`
}

func (c ConfigArgs) Encode() ([]byte, error) {
	c.V = 1
	return json.Marshal(c)
}

func DecodeConfigArgs(raw []byte) (ConfigArgs, error) {
	var c ConfigArgs
	if err := json.Unmarshal(raw, &c); err != nil {
		return ConfigArgs{}, fmt.Errorf("decode schedule config args: %w", err)
	}
	if c.V != 1 {
		return ConfigArgs{}, apperr.Newf(apperr.KindValidation, "unsupported config args version %d", c.V)
	}
	return c, nil
}

// ScheduleConfig is the enumerated configuration sent at schedule time,
// produced by the ordered config resolver.
type ScheduleConfig struct {
	TotalAttempts           int
	PassPercentage          float64
	DurationMinutes         int
	NegativeScorePercentage float64
	EnableShuffling         bool
	ResultType              string
	RedirectURL             string
	EnableProctoring        bool
	EnableAeyeProctoring    bool
	ProctoringConfig        json.RawMessage
	EnablePlagiarism        bool
	ConfigArgs              ConfigArgs
}

type ScheduleRequest struct {
	UserEmail   string
	UserName    string
	ProviderRef string
	Config      ScheduleConfig
}

// ScheduleResult carries the provider reservation. WECP issues a single
// invite link and no numeric schedule id.
type ScheduleResult struct {
	ScheduleID   int64
	ScheduleLink string
	InviteID     string
}

// Attempt is one provider-side attempt as returned by a result fetch.
type Attempt struct {
	Number            int
	Status            string
	DurationSecs      int
	TotalQuestions    int
	AnsweredQuestions int
	ScorePercentage   float64
	StartedAt         *time.Time
	EndedAt           *time.Time
}

// Completed reports whether the attempt should be ingested. In-flight
// attempts are skipped until the provider finalizes them.
func (a Attempt) Completed() bool {
	switch a.Status {
	case "In Progress", "in_progress", "InProgress", "Started":
		return false
	}
	return true
}

type Provider interface {
	Schedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error)
	FetchResults(ctx context.Context, scheduleID int64, inviteID, userEmail string) ([]Attempt, error)
	GrantExtraAttempt(ctx context.Context, scheduleID int64, userEmail string, delta int) error
}

// Gateway picks the adapter for a provider type.
type Gateway struct {
	adapters map[types.ProviderType]Provider
}

func NewGateway(yaksha, wecp Provider) *Gateway {
	return &Gateway{adapters: map[types.ProviderType]Provider{
		types.ProviderYaksha: yaksha,
		types.ProviderWECP:   wecp,
	}}
}

func (g *Gateway) For(pt types.ProviderType) (Provider, error) {
	p, ok := g.adapters[pt]
	if !ok || p == nil {
		return nil, apperr.Newf(apperr.KindConfigMissing, "no adapter configured for provider %q", pt)
	}
	return p, nil
}
