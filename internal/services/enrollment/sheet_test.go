package enrollment

import (
	"strings"
	"testing"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
)

func TestParseEnrollSheet(t *testing.T) {
	sheet := strings.Join([]string{
		"TenantName,UserEmail,Type,TypeName,Code,EndDate",
		"acme,Ada@Example.test,course,Go Basics,GO-101,12/31/2026",
		"acme,bob@example.test,lp,Backend Path,BE-PATH,",
		"acme,carol@example.test,spaceship,Nope,X-1,",
		"acme,,course,No Email,GO-101,",
		"acme,dan@example.test,course,Bad Date,GO-101,2026-12-31",
	}, "\n")

	rows, errs, err := ParseEnrollSheet(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("ParseEnrollSheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(errs) != 3 {
		t.Fatalf("got %d row errors, want 3: %v", len(errs), errs)
	}

	if rows[0].UserEmail != "ada@example.test" {
		t.Errorf("email not lowercased: %q", rows[0].UserEmail)
	}
	if rows[0].Kind != types.KindCourse {
		t.Errorf("row 1 kind = %q", rows[0].Kind)
	}
	if rows[0].EndDate == nil || rows[0].EndDate.Year() != 2026 {
		t.Errorf("row 1 end date not parsed: %v", rows[0].EndDate)
	}
	if rows[1].Kind != types.KindLearningPath {
		t.Errorf("lp alias not mapped: %q", rows[1].Kind)
	}
	if rows[1].EndDate != nil {
		t.Errorf("empty end date should stay nil")
	}

	for _, wantLine := range []int{4, 5, 6} {
		found := false
		for _, e := range errs {
			if e.Line == wantLine {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a row error for line %d, got %v", wantLine, errs)
		}
	}
}

func TestParseEnrollSheetBadHeader(t *testing.T) {
	sheet := "Email,Type,Code\nada@example.test,course,GO-101\n"
	if _, _, err := ParseEnrollSheet(strings.NewReader(sheet)); err == nil {
		t.Fatal("expected header mismatch error")
	}
}

func TestParseUnenrollSheet(t *testing.T) {
	sheet := strings.Join([]string{
		"UserEmail,Type,Code",
		"ada@example.test,course,GO-101",
		"bob@example.test,advanced learning path,ALP-1",
		",course,GO-101",
	}, "\n")

	rows, errs, err := ParseUnenrollSheet(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("ParseUnenrollSheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Kind != types.KindAdvancedLearningPath {
		t.Errorf("spaced type not normalized: %q", rows[1].Kind)
	}
	if len(errs) != 1 || errs[0].Line != 4 {
		t.Errorf("expected one error on line 4, got %v", errs)
	}
}
