package id_test

import (
	"encoding/json"
	"testing"

	"github.com/quorumchat/taskq/id"
)

func TestNewJobID(t *testing.T) {
	jobID := id.NewJobID()

	if jobID.IsNil() {
		t.Fatal("NewJobID returned nil ID")
	}
	if jobID.Prefix() != id.PrefixJob {
		t.Errorf("Prefix = %q, want %q", jobID.Prefix(), id.PrefixJob)
	}
}

func TestNew_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		s := id.NewJobID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParse_RoundTrip(t *testing.T) {
	original := id.NewJobID()

	parsed, err := id.Parse(original.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != original {
		t.Errorf("Parse(%q) = %v, want %v", original.String(), parsed, original)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestParseJobID_WrongPrefix(t *testing.T) {
	sub := id.NewSubscriberID()
	if _, err := id.ParseJobID(sub.String()); err == nil {
		t.Errorf("expected prefix error parsing %q as job ID", sub.String())
	}
}

func TestNil(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
}

func TestID_JSONRoundTrip(t *testing.T) {
	original := id.NewJobID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip = %v, want %v", decoded, original)
	}
}

func TestID_ScanValue(t *testing.T) {
	original := id.NewJobID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned != original {
		t.Errorf("Scan round trip = %v, want %v", scanned, original)
	}

	// NULL scans to Nil.
	var nilID id.ID
	if err := nilID.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !nilID.IsNil() {
		t.Error("Scan(nil) should produce Nil ID")
	}
}
