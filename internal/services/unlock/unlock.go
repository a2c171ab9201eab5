// Package unlock decides whether a nested item is currently accessible to a
// learner. Evaluation is pure: callers assemble the item, its parent state
// and the sibling snapshot; nothing here touches storage or the network, and
// no locking state is ever persisted.
package unlock

import (
	"time"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
)

// Class separates sibling populations. Units are same-kind structural
// siblings (module before module, course before course, lp before lp);
// assessments and assignments gate independently.
type Class int

const (
	ClassUnit Class = iota
	ClassAssessment
	ClassAssignment
)

// Item is the evaluation target.
type Item struct {
	Class          Class
	Sequence       int
	IsFinal        bool
	IsPractice     bool
	EvaluationType types.EvaluationType
	IsCompleted    bool

	StartDate *time.Time
	EndDate   *time.Time

	// Learning-path course gates.
	IsLockActive bool
	UnlockDate   *time.Time
}

// Sibling is the learner-relative state of one other child of the same
// parent.
type Sibling struct {
	Class          Class
	Sequence       int
	IsPractice     bool
	EvaluationType types.EvaluationType
	HasTracker     bool
	IsCompleted    bool
}

// Parent carries the containing artifact's gate inputs.
type Parent struct {
	IsCompleted  bool
	IsSequential bool
}

// Locked applies the ordered rule set and reports whether the item is
// locked at instant now. The first matching rule decides; where two rules
// overlap the locked outcome wins.
func Locked(now time.Time, item Item, parent Parent, siblings []Sibling) bool {
	// Completed work never re-locks.
	if parent.IsCompleted || item.IsCompleted {
		return false
	}

	if outsideWindow(now, item.StartDate, item.EndDate) {
		return true
	}

	// Learning-path course gates hold even for non-sequential parents.
	if item.IsLockActive {
		return true
	}
	if item.UnlockDate != nil && now.Before(*item.UnlockDate) {
		return true
	}

	if item.Class == ClassAssessment && item.IsPractice {
		return false
	}
	if item.Class == ClassAssignment && item.EvaluationType == types.EvaluationNonEvaluated {
		return false
	}

	if !parent.IsSequential {
		return false
	}

	if item.IsFinal {
		return finalLocked(item, siblings)
	}
	return sequentialLocked(item, siblings)
}

func outsideWindow(now time.Time, start, end *time.Time) bool {
	if start != nil && now.Before(*start) {
		return true
	}
	if end != nil && now.After(*end) {
		return true
	}
	return false
}

// sequentialLocked checks every sibling with a strictly smaller sequence.
func sequentialLocked(item Item, siblings []Sibling) bool {
	for _, sib := range siblings {
		if sib.Sequence >= item.Sequence {
			continue
		}
		switch sib.Class {
		case ClassUnit:
			if !sib.IsCompleted {
				return true
			}
		case ClassAssessment:
			if sib.IsPractice {
				continue
			}
			if !sib.HasTracker || !sib.IsCompleted {
				return true
			}
		case ClassAssignment:
			if sib.EvaluationType != types.EvaluationEvaluated {
				continue
			}
			if !sib.HasTracker || !sib.IsCompleted {
				return true
			}
		}
	}
	return false
}

// finalLocked requires every unit sibling of the parent to be complete
// before a final assessment or assignment opens.
func finalLocked(item Item, siblings []Sibling) bool {
	for _, sib := range siblings {
		if sib.Class != ClassUnit {
			continue
		}
		if !sib.IsCompleted {
			return true
		}
	}
	return sequentialLocked(item, siblings)
}
