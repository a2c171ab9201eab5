// Package domain holds the persisted model for the learning progress and
// enrollment engine: the artifact catalog, enrollments, per-learner progress
// trackers, assessment schedules and results, submissions, gamification
// activities, and the background job queue. Every table lives in a tenant
// database; rows never reference another tenant.
package domain

// ArtifactKind tags the variant of an artifact reference. Trackers and
// enrollments store (kind, key) pairs instead of one sparse foreign key per
// artifact table.
type ArtifactKind string

const (
	KindCourse               ArtifactKind = "course"
	KindCourseModule         ArtifactKind = "course_module"
	KindSubmodule            ArtifactKind = "submodule"
	KindLearningPath         ArtifactKind = "learning_path"
	KindLPCourse             ArtifactKind = "lp_course"
	KindAdvancedLearningPath ArtifactKind = "advanced_learning_path"
	KindALPLearningPath      ArtifactKind = "alp_lp"
	KindSkillTraveller       ArtifactKind = "skill_traveller"
	KindSTCourse             ArtifactKind = "st_course"
	KindPlayground           ArtifactKind = "playground"
	KindPlaygroundGroup      ArtifactKind = "playground_group"
	KindAssignment           ArtifactKind = "assignment"
	KindAssignmentGroup      ArtifactKind = "assignment_group"
	KindAssessment           ArtifactKind = "assessment"
	KindSkillOntology        ArtifactKind = "skill_ontology"
)

// RemoteSlug returns the path segment the content service (CCMS) uses for
// this kind, or "" when the kind is never remote.
func (k ArtifactKind) RemoteSlug() string {
	switch k {
	case KindCourse:
		return "course"
	case KindCourseModule:
		return "course/module"
	case KindSubmodule:
		return "course/submodule"
	case KindLearningPath:
		return "learning-path"
	case KindAdvancedLearningPath:
		return "advanced-learning-path"
	case KindSkillTraveller:
		return "skill-traveller"
	case KindPlayground:
		return "playground"
	case KindPlaygroundGroup:
		return "playground-group"
	case KindAssignment:
		return "assignment"
	case KindAssignmentGroup:
		return "assignment-group"
	}
	return ""
}

// Enrollable reports whether a learner can be admitted directly into this
// kind. Modules and submodules are only reachable through their course.
func (k ArtifactKind) Enrollable() bool {
	switch k {
	case KindCourse, KindLearningPath, KindAdvancedLearningPath, KindSkillTraveller,
		KindPlayground, KindPlaygroundGroup, KindAssignment, KindAssignmentGroup,
		KindSkillOntology:
		return true
	}
	return false
}

type Proficiency string

const (
	ProficiencyBasic         Proficiency = "basic"
	ProficiencyIntermediate  Proficiency = "intermediate"
	ProficiencyAdvance       Proficiency = "advance"
	ProficiencyComprehensive Proficiency = "comprehensive"
	ProficiencyCertification Proficiency = "certification"
	ProficiencyConversant    Proficiency = "conversant"
	ProficiencyGeneral       Proficiency = "general"
)

type EvaluationType string

const (
	EvaluationEvaluated    EvaluationType = "evaluated"
	EvaluationNonEvaluated EvaluationType = "non_evaluated"
)

type SubmoduleType string

const (
	SubmoduleVideo          SubmoduleType = "video"
	SubmoduleFile           SubmoduleType = "file"
	SubmoduleCustomURL      SubmoduleType = "custom_url"
	SubmoduleSCORM          SubmoduleType = "scorm"
	SubmoduleFileSubmission SubmoduleType = "file_submission"
)

type ProviderType string

const (
	ProviderYaksha ProviderType = "yaksha"
	ProviderWECP   ProviderType = "wecp"
)

type LearningStatus string

const (
	LearningNotStarted LearningStatus = "not_started"
	LearningStarted    LearningStatus = "started"
	LearningInProgress LearningStatus = "in_progress"
	LearningCompleted  LearningStatus = "completed"
)

// Rank orders learning statuses so transitions can be checked for
// monotonic advancement.
func (s LearningStatus) Rank() int {
	switch s {
	case LearningNotStarted:
		return 0
	case LearningStarted:
		return 1
	case LearningInProgress:
		return 2
	case LearningCompleted:
		return 3
	}
	return -1
}

type ApprovalType string

const (
	ApprovalSelf        ApprovalType = "self"
	ApprovalTenantAdmin ApprovalType = "tenant_admin"
	ApprovalSuperAdmin  ApprovalType = "super_admin"
)

type EnrollmentAction string

const (
	ActionPending  EnrollmentAction = "pending"
	ActionApproved EnrollmentAction = "approved"
	ActionRejected EnrollmentAction = "rejected"
)

type AssessmentKind string

const (
	AssessmentModule AssessmentKind = "module"
	AssessmentFinal  AssessmentKind = "final"
	AssessmentCourse AssessmentKind = "course"
)

type BadgeCategory string

const (
	BadgeCategoryVideo      BadgeCategory = "video"
	BadgeCategoryMML        BadgeCategory = "mml"
	BadgeCategoryAssessment BadgeCategory = "assessment"
)

type BadgeType string

const (
	BadgeSilver   BadgeType = "silver"
	BadgeGold     BadgeType = "gold"
	BadgePlatinum BadgeType = "platinum"
	BadgeVideo    BadgeType = "video"
)
