package unlock

import (
	"testing"
	"time"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
)

func unit(seq int, completed bool) Sibling {
	return Sibling{Class: ClassUnit, Sequence: seq, HasTracker: completed, IsCompleted: completed}
}

func TestSequentialModules(t *testing.T) {
	now := time.Now()
	parent := Parent{IsSequential: true}
	siblings := []Sibling{unit(1, false), unit(2, false), unit(3, false)}

	if Locked(now, Item{Class: ClassUnit, Sequence: 1}, parent, siblings) {
		t.Fatalf("first module should be unlocked before any progress")
	}
	if !Locked(now, Item{Class: ClassUnit, Sequence: 2}, parent, siblings) {
		t.Fatalf("second module should be locked before module one completes")
	}

	siblings[0].IsCompleted = true
	if Locked(now, Item{Class: ClassUnit, Sequence: 2}, parent, siblings) {
		t.Fatalf("second module should unlock after module one completes")
	}
	if !Locked(now, Item{Class: ClassUnit, Sequence: 3}, parent, siblings) {
		t.Fatalf("third module should stay locked")
	}
}

func TestNonSequentialParentUnlocksEverything(t *testing.T) {
	now := time.Now()
	siblings := []Sibling{unit(1, false), unit(2, false)}
	if Locked(now, Item{Class: ClassUnit, Sequence: 2}, Parent{IsSequential: false}, siblings) {
		t.Fatalf("non-sequential parent must not lock later siblings")
	}
}

func TestCompletedItemNeverLocks(t *testing.T) {
	now := time.Now()
	item := Item{Class: ClassUnit, Sequence: 5, IsCompleted: true}
	siblings := []Sibling{unit(1, false)}
	if Locked(now, item, Parent{IsSequential: true}, siblings) {
		t.Fatalf("completed item must stay accessible")
	}
	if Locked(now, Item{Class: ClassUnit, Sequence: 5}, Parent{IsSequential: true, IsCompleted: true}, siblings) {
		t.Fatalf("item under a completed parent must stay accessible")
	}
}

func TestDateWindow(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	if !Locked(now, Item{Class: ClassUnit, Sequence: 1, StartDate: &future}, Parent{}, nil) {
		t.Fatalf("item before its start date should be locked")
	}
	if !Locked(now, Item{Class: ClassUnit, Sequence: 1, EndDate: &past}, Parent{}, nil) {
		t.Fatalf("item after its end date should be locked")
	}
	if Locked(now, Item{Class: ClassUnit, Sequence: 1, StartDate: &past, EndDate: &future}, Parent{}, nil) {
		t.Fatalf("item inside its window should be unlocked")
	}
}

func TestLPCourseGates(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	if !Locked(now, Item{Class: ClassUnit, Sequence: 1, IsLockActive: true}, Parent{}, nil) {
		t.Fatalf("lock-active lp course should be locked")
	}
	if !Locked(now, Item{Class: ClassUnit, Sequence: 1, UnlockDate: &future}, Parent{}, nil) {
		t.Fatalf("lp course with future unlock date should be locked")
	}
	past := now.Add(-time.Hour)
	if Locked(now, Item{Class: ClassUnit, Sequence: 1, UnlockDate: &past}, Parent{}, nil) {
		t.Fatalf("lp course with elapsed unlock date should be open")
	}
}

func TestPracticeAssessmentSkipsDependencyRules(t *testing.T) {
	now := time.Now()
	parent := Parent{IsSequential: true}
	siblings := []Sibling{unit(1, false)}
	item := Item{Class: ClassAssessment, Sequence: 2, IsPractice: true}
	if Locked(now, item, parent, siblings) {
		t.Fatalf("practice assessments are never dependency-locked")
	}
	future := now.Add(time.Hour)
	item.StartDate = &future
	if !Locked(now, item, parent, siblings) {
		t.Fatalf("date rule still applies to practice assessments")
	}
}

func TestNonEvaluatedAssignmentNeverLocked(t *testing.T) {
	now := time.Now()
	parent := Parent{IsSequential: true}
	siblings := []Sibling{unit(1, false)}
	item := Item{Class: ClassAssignment, Sequence: 2, EvaluationType: types.EvaluationNonEvaluated}
	if Locked(now, item, parent, siblings) {
		t.Fatalf("non-evaluated assignments are never locked")
	}
}

func TestPreviousAssessmentGates(t *testing.T) {
	now := time.Now()
	parent := Parent{IsSequential: true}
	siblings := []Sibling{
		unit(1, true),
		{Class: ClassAssessment, Sequence: 2, HasTracker: false},
	}
	item := Item{Class: ClassUnit, Sequence: 3}
	if !Locked(now, item, parent, siblings) {
		t.Fatalf("untracked previous assessment should lock later items")
	}

	siblings[1].IsPractice = true
	if Locked(now, item, parent, siblings) {
		t.Fatalf("previous practice assessment must not lock later items")
	}
}

func TestFinalAssessmentRequiresAllUnits(t *testing.T) {
	now := time.Now()
	parent := Parent{IsSequential: true}
	siblings := []Sibling{unit(1, true), unit(2, true), unit(3, false)}
	final := Item{Class: ClassAssessment, Sequence: 99, IsFinal: true}
	if !Locked(now, final, parent, siblings) {
		t.Fatalf("final assessment should wait for every module")
	}
	siblings[2].IsCompleted = true
	if Locked(now, final, parent, siblings) {
		t.Fatalf("final assessment should open once all modules complete")
	}
}

func TestEvaluatedAssignmentGates(t *testing.T) {
	now := time.Now()
	parent := Parent{IsSequential: true}
	siblings := []Sibling{
		{Class: ClassAssignment, Sequence: 1, EvaluationType: types.EvaluationEvaluated, HasTracker: true, IsCompleted: false},
	}
	if !Locked(now, Item{Class: ClassUnit, Sequence: 2}, parent, siblings) {
		t.Fatalf("incomplete evaluated assignment should lock later items")
	}
	siblings[0].EvaluationType = types.EvaluationNonEvaluated
	if Locked(now, Item{Class: ClassUnit, Sequence: 2}, parent, siblings) {
		t.Fatalf("non-evaluated assignment must not gate later items")
	}
}
