// Package gamification awards milestone points and badges on tracker
// transitions. Awards are idempotent; notification failures never roll back
// an award.
package gamification

import (
	"github.com/google/uuid"

	gamrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/gamification"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Dispatcher interface {
	// Emit awards each named milestone once. Singleton milestones dedupe per
	// user; the rest dedupe per (user, milestone, artifact).
	Emit(dbc dbctx.Context, userID uuid.UUID, names []types.MilestoneName, artifact types.ArtifactRef) error

	// AwardVideoBadge grants the course-proficiency video badge for one
	// watched submodule, splitting badge points across the course's videos.
	AwardVideoBadge(dbc dbctx.Context, userID uuid.UUID, proficiency types.Proficiency, courseRef types.ArtifactRef, trackerID uuid.UUID, videoCount int) error

	// AwardAssessmentBadge matches the score band for the proficiency and
	// upserts; a higher-tier badge supersedes a lower one for the same key.
	AwardAssessmentBadge(dbc dbctx.Context, userID uuid.UUID, proficiency types.Proficiency, learningRef types.ArtifactRef, trackerID uuid.UUID, score float64) error

	// PromoteExpert records a course-expert promotion once per (user, course).
	PromoteExpert(dbc dbctx.Context, userID, courseID uuid.UUID, score float64) error
}

type dispatcher struct {
	log         *logger.Logger
	milestones  gamrepo.MilestoneRepo
	badges      gamrepo.BadgeRepo
	leaderboard gamrepo.LeaderboardRepo
	activities  gamrepo.BadgeActivityRepo
	experts     gamrepo.ExpertRepo
}

func NewDispatcher(
	log *logger.Logger,
	milestones gamrepo.MilestoneRepo,
	badges gamrepo.BadgeRepo,
	leaderboard gamrepo.LeaderboardRepo,
	activities gamrepo.BadgeActivityRepo,
	experts gamrepo.ExpertRepo,
) Dispatcher {
	return &dispatcher{
		log:         log.With("service", "GamificationDispatcher"),
		milestones:  milestones,
		badges:      badges,
		leaderboard: leaderboard,
		activities:  activities,
		experts:     experts,
	}
}

func (d *dispatcher) Emit(dbc dbctx.Context, userID uuid.UUID, names []types.MilestoneName, artifact types.ArtifactRef) error {
	for _, name := range names {
		row, err := d.milestones.GetByName(dbc, name)
		if err != nil {
			return err
		}
		if row == nil {
			d.log.Warn("milestone not configured", "milestone", name)
			continue
		}

		var dedupeRef *types.ArtifactRef
		if !name.Singleton() && !artifact.IsZero() {
			dedupeRef = &artifact
		}
		exists, err := d.leaderboard.Exists(dbc, userID, name, dedupeRef)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		activity := &types.LeaderboardActivity{
			UserID:    userID,
			Milestone: name,
			Points:    row.Points,
		}
		if !artifact.IsZero() {
			activity.ArtifactKind = artifact.Kind
			id := artifact.ID
			activity.ArtifactID = &id
		}
		if err := d.leaderboard.Create(dbc, activity); err != nil {
			return err
		}
		d.log.Info("milestone awarded", "user", userID, "milestone", name, "points", row.Points)
	}
	return nil
}

func (d *dispatcher) AwardVideoBadge(dbc dbctx.Context, userID uuid.UUID, proficiency types.Proficiency, courseRef types.ArtifactRef, trackerID uuid.UUID, videoCount int) error {
	if videoCount <= 0 {
		return nil
	}
	badge, err := d.badges.FindVideoBadge(dbc, proficiency, 0)
	if err != nil {
		return err
	}
	if badge == nil {
		// Fall back to the general band when the proficiency has no badge.
		badge, err = d.badges.FindVideoBadge(dbc, types.ProficiencyGeneral, 0)
		if err != nil || badge == nil {
			return err
		}
	}

	existing, err := d.activities.FindForLearning(dbc, userID, badge.Category, courseRef.Kind, courseRef.ID, trackerID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	points := float64(badge.Points) / float64(videoCount)
	return d.activities.Create(dbc, &types.BadgeActivity{
		UserID:       userID,
		BadgeID:      badge.ID,
		Category:     badge.Category,
		Type:         badge.Type,
		LearningType: courseRef.Kind,
		LearningID:   courseRef.ID,
		TrackerID:    trackerID,
		Points:       points,
	})
}

func (d *dispatcher) AwardAssessmentBadge(dbc dbctx.Context, userID uuid.UUID, proficiency types.Proficiency, learningRef types.ArtifactRef, trackerID uuid.UUID, score float64) error {
	badge, err := d.badges.FindAssessmentBadge(dbc, proficiency, score)
	if err != nil {
		return err
	}
	if badge == nil {
		d.log.Debug("no assessment badge band matches", "proficiency", proficiency, "score", score)
		return nil
	}

	existing, err := d.activities.FindForLearning(dbc, userID, badge.Category, learningRef.Kind, learningRef.ID, trackerID)
	if err != nil {
		return err
	}
	if existing == nil {
		return d.activities.Create(dbc, &types.BadgeActivity{
			UserID:       userID,
			BadgeID:      badge.ID,
			Category:     badge.Category,
			Type:         badge.Type,
			LearningType: learningRef.Kind,
			LearningID:   learningRef.ID,
			TrackerID:    trackerID,
			Points:       float64(badge.Points),
		})
	}
	// Re-computation only ever upgrades.
	if existing.Points >= float64(badge.Points) {
		return nil
	}
	return d.activities.UpdateFields(dbc, existing.ID, map[string]interface{}{
		"badge_id": badge.ID,
		"type":     badge.Type,
		"points":   float64(badge.Points),
	})
}

func (d *dispatcher) PromoteExpert(dbc dbctx.Context, userID, courseID uuid.UUID, score float64) error {
	exists, err := d.experts.Exists(dbc, userID, courseID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return d.experts.Create(dbc, &types.CourseExpert{
		UserID:   userID,
		CourseID: courseID,
		Score:    score,
	})
}
