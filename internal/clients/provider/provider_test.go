package provider

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
)

func TestConfigArgsRoundTrip(t *testing.T) {
	in := ConfigArgs{
		TenantID:       "acme",
		LearningKind:   types.KindCourse,
		LearningID:     uuid.New(),
		AssessmentKind: types.AssessmentFinal,
		AssessmentID:   uuid.New(),
		IsExternal:     true,
	}
	raw, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, err := DecodeConfigArgs(raw)
	if err != nil {
		t.Fatalf("DecodeConfigArgs: %v", err)
	}
	if out.V != 1 {
		t.Errorf("version = %d, want 1", out.V)
	}
	if out.TenantID != in.TenantID || out.LearningID != in.LearningID ||
		out.AssessmentID != in.AssessmentID || out.AssessmentKind != in.AssessmentKind ||
		out.LearningKind != in.LearningKind || out.IsExternal != in.IsExternal {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestConfigArgsEncodeForcesVersion(t *testing.T) {
	raw, err := ConfigArgs{V: 7, TenantID: "acme"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["v"] != float64(1) {
		t.Errorf("encoded v = %v, want 1", m["v"])
	}
}

func TestDecodeConfigArgsRejectsUnknownVersion(t *testing.T) {
	if _, err := DecodeConfigArgs([]byte(`{"v":2,"tenant_id":"acme"}`)); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := DecodeConfigArgs([]byte(`{"tenant_id":"acme"}`)); err == nil {
		t.Fatal("expected version error for missing v")
	}
	if _, err := DecodeConfigArgs([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAttemptCompleted(t *testing.T) {
	for _, status := range []string{"In Progress", "in_progress", "Started"} {
		if (Attempt{Status: status}).Completed() {
			t.Errorf("status %q should not be completed", status)
		}
	}
	for _, status := range []string{"Completed", "Pass", "Fail", "Expired"} {
		if !(Attempt{Status: status}).Completed() {
			t.Errorf("status %q should be completed", status)
		}
	}
}
