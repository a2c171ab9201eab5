package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ArtifactRef addresses one learning artifact: a kind plus a key that is
// either a local row id or the stable UUID of a remote (CCMS) artifact.
type ArtifactRef struct {
	Kind       ArtifactKind
	ID         uuid.UUID
	IsExternal bool
}

func LocalRef(kind ArtifactKind, id uuid.UUID) ArtifactRef {
	return ArtifactRef{Kind: kind, ID: id}
}

func ExternalRef(kind ArtifactKind, id uuid.UUID) ArtifactRef {
	return ArtifactRef{Kind: kind, ID: id, IsExternal: true}
}

func (r ArtifactRef) IsZero() bool {
	return r.Kind == "" || r.ID == uuid.Nil
}

func (r ArtifactRef) String() string {
	origin := "local"
	if r.IsExternal {
		origin = "external"
	}
	return fmt.Sprintf("%s/%s (%s)", r.Kind, r.ID, origin)
}

// MilestoneName identifies an accomplishment class. The closed set mirrors
// the milestone configuration table; points come from the row, not the code.
type MilestoneName string

const (
	MilestoneFirstCourseEnroll        MilestoneName = "first_course_enroll"
	MilestoneCourseSelfEnroll         MilestoneName = "course_self_enroll"
	MilestoneFirstCourseComplete      MilestoneName = "first_course_complete"
	MilestoneCourseCompletion         MilestoneName = "course_completion"
	MilestoneCourseCertificateEarned  MilestoneName = "course_certificate_earned"
	MilestoneModuleCompletionFirst    MilestoneName = "module_completion_in_first_enrolled_course"
	MilestoneYakshaCompletion         MilestoneName = "yaksha_completion"
	MilestoneLearningPathStarter      MilestoneName = "learning_path_starter"
	MilestoneLearningPathCompletion   MilestoneName = "learning_path_completion"
	MilestoneALPCompletion            MilestoneName = "advanced_learning_path_completion"
	MilestoneSkillTravellerCompletion MilestoneName = "skill_traveller_completion"
)

// Singleton reports whether at most one leaderboard activity may ever exist
// per user for this milestone. Non-singleton milestones dedupe per artifact.
func (m MilestoneName) Singleton() bool {
	switch m {
	case MilestoneFirstCourseEnroll, MilestoneFirstCourseComplete,
		MilestoneModuleCompletionFirst, MilestoneLearningPathStarter:
		return true
	}
	return false
}
