package enrollment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
)

// sheetDateLayout is the MM/DD/YYYY format the bulk sheets use.
const sheetDateLayout = "01/02/2006"

// EnrollRow is one parsed line of the bulk enrollment sheet.
type EnrollRow struct {
	Line       int
	TenantName string
	UserEmail  string
	Kind       types.ArtifactKind
	TypeName   string
	Code       string
	EndDate    *time.Time
}

// UnenrollRow is one parsed line of the bulk unenrollment sheet.
type UnenrollRow struct {
	Line      int
	UserEmail string
	Kind      types.ArtifactKind
	Code      string
}

// RowError records a skipped sheet line; processing continues past it.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

var enrollHeader = []string{"TenantName", "UserEmail", "Type", "TypeName", "Code", "EndDate"}
var unenrollHeader = []string{"UserEmail", "Type", "Code"}

// ParseEnrollSheet reads the bulk enrollment CSV. Malformed lines are
// collected as RowErrors and skipped; only a bad header fails the sheet.
func ParseEnrollSheet(r io.Reader) ([]EnrollRow, []RowError, error) {
	records, err := readSheet(r, enrollHeader)
	if err != nil {
		return nil, nil, err
	}
	var rows []EnrollRow
	var errs []RowError
	for i, rec := range records {
		line := i + 2
		row := EnrollRow{
			Line:       line,
			TenantName: strings.TrimSpace(rec[0]),
			UserEmail:  strings.ToLower(strings.TrimSpace(rec[1])),
			TypeName:   strings.TrimSpace(rec[3]),
			Code:       strings.TrimSpace(rec[4]),
		}
		kind, ok := parseSheetKind(rec[2])
		if !ok {
			errs = append(errs, RowError{Line: line, Reason: fmt.Sprintf("unknown type %q", rec[2])})
			continue
		}
		row.Kind = kind
		if row.UserEmail == "" || row.Code == "" {
			errs = append(errs, RowError{Line: line, Reason: "UserEmail and Code are required"})
			continue
		}
		if raw := strings.TrimSpace(rec[5]); raw != "" {
			d, err := time.Parse(sheetDateLayout, raw)
			if err != nil {
				errs = append(errs, RowError{Line: line, Reason: fmt.Sprintf("EndDate %q is not MM/DD/YYYY", raw)})
				continue
			}
			row.EndDate = &d
		}
		rows = append(rows, row)
	}
	return rows, errs, nil
}

func ParseUnenrollSheet(r io.Reader) ([]UnenrollRow, []RowError, error) {
	records, err := readSheet(r, unenrollHeader)
	if err != nil {
		return nil, nil, err
	}
	var rows []UnenrollRow
	var errs []RowError
	for i, rec := range records {
		line := i + 2
		email := strings.ToLower(strings.TrimSpace(rec[0]))
		kind, ok := parseSheetKind(rec[1])
		if !ok {
			errs = append(errs, RowError{Line: line, Reason: fmt.Sprintf("unknown type %q", rec[1])})
			continue
		}
		code := strings.TrimSpace(rec[2])
		if email == "" || code == "" {
			errs = append(errs, RowError{Line: line, Reason: "UserEmail and Code are required"})
			continue
		}
		rows = append(rows, UnenrollRow{Line: line, UserEmail: email, Kind: kind, Code: code})
	}
	return rows, errs, nil
}

func readSheet(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	got, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read sheet header: %w", err)
	}
	if len(got) < len(header) {
		return nil, fmt.Errorf("sheet header has %d columns, want %d", len(got), len(header))
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want) {
			return nil, fmt.Errorf("sheet column %d is %q, want %q", i+1, got[i], want)
		}
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseSheetKind(raw string) (types.ArtifactKind, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")) {
	case "course":
		return types.KindCourse, true
	case "learning_path", "lp":
		return types.KindLearningPath, true
	case "advanced_learning_path", "alp":
		return types.KindAdvancedLearningPath, true
	case "skill_traveller":
		return types.KindSkillTraveller, true
	case "playground":
		return types.KindPlayground, true
	case "playground_group":
		return types.KindPlaygroundGroup, true
	case "assignment":
		return types.KindAssignment, true
	case "assignment_group":
		return types.KindAssignmentGroup, true
	}
	return "", false
}

// BulkOutcome summarizes one bulk sheet run.
type BulkOutcome struct {
	Processed int
	Skipped   []RowError
}

// BulkEnroll applies parsed rows as admin enrollments. Rows for other
// tenants, unknown users, or unknown codes are skipped and reported.
func (s *service) BulkEnroll(ctx context.Context, tenantName string, db *gorm.DB, actorID uuid.UUID, rows []EnrollRow, parseErrs []RowError) (*BulkOutcome, error) {
	out := &BulkOutcome{Skipped: append([]RowError{}, parseErrs...)}
	read := dbctx.Context{Ctx: ctx, Tx: db}
	for _, row := range rows {
		if row.TenantName != "" && !strings.EqualFold(row.TenantName, tenantName) {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line,
				Reason: fmt.Sprintf("tenant %q does not match %q", row.TenantName, tenantName)})
			continue
		}
		u, err := s.users.GetByEmail(read, row.UserEmail)
		if err != nil {
			return nil, err
		}
		if u == nil {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line,
				Reason: fmt.Sprintf("no user %q", row.UserEmail)})
			continue
		}
		ref, err := s.resolveCode(read, row.Kind, row.Code)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line,
				Reason: fmt.Sprintf("no %s with code %q", row.Kind, row.Code)})
			continue
		}
		if _, err := s.Enroll(ctx, tenantName, db, EnrollInput{
			ActorID:      actorID,
			ActorIsAdmin: true,
			UserID:       u.ID,
			Ref:          ref,
			EndDate:      row.EndDate,
		}); err != nil {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		out.Processed++
	}
	return out, nil
}

func (s *service) BulkUnenroll(ctx context.Context, tenantName string, db *gorm.DB, actorID uuid.UUID, rows []UnenrollRow, parseErrs []RowError) (*BulkOutcome, error) {
	out := &BulkOutcome{Skipped: append([]RowError{}, parseErrs...)}
	read := dbctx.Context{Ctx: ctx, Tx: db}
	for _, row := range rows {
		u, err := s.users.GetByEmail(read, row.UserEmail)
		if err != nil {
			return nil, err
		}
		if u == nil {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line,
				Reason: fmt.Sprintf("no user %q", row.UserEmail)})
			continue
		}
		ref, err := s.resolveCode(read, row.Kind, row.Code)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line,
				Reason: fmt.Sprintf("no %s with code %q", row.Kind, row.Code)})
			continue
		}
		if err := s.Unenroll(ctx, tenantName, db, UnenrollInput{
			ActorID:      actorID,
			ActorIsAdmin: true,
			UserID:       u.ID,
			Ref:          ref,
		}); err != nil {
			out.Skipped = append(out.Skipped, RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		out.Processed++
	}
	return out, nil
}

func (s *service) resolveCode(dbc dbctx.Context, kind types.ArtifactKind, code string) (types.ArtifactRef, error) {
	id, err := s.catalogRows.FindIDByKindAndCode(dbc, kind, code)
	if err != nil {
		return types.ArtifactRef{}, err
	}
	return types.LocalRef(kind, id), nil
}
