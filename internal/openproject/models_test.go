package openproject

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"PT8H", 8},
		{"PT4H30M", 4.5},
		{"PT30M", 0.5},
		{"PT0H", 0},
		{"", 0},
		{"8H", 0},
		{"P1D", 0},
	}
	for _, tc := range cases {
		if got := ParseISODuration(tc.in); got != tc.want {
			t.Errorf("ParseISODuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if got := FormatHours(8); got != "8h" {
		t.Fatalf("FormatHours(8) = %q", got)
	}
	if got := FormatHours(4.5); got != "4.5h" {
		t.Fatalf("FormatHours(4.5) = %q", got)
	}
}

func TestUserDisplayName(t *testing.T) {
	cases := []struct {
		user User
		want string
	}{
		{User{ID: 1, Name: "Jane Smith", Email: "jane@example.com"}, "Jane Smith"},
		{User{ID: 2, Email: "jane@example.com"}, "jane@example.com"},
		{User{ID: 3}, "User 3"},
	}
	for _, tc := range cases {
		if got := tc.user.DisplayName(); got != tc.want {
			t.Errorf("DisplayName() = %q, want %q", got, tc.want)
		}
	}
}

const workPackageFixture = `{
  "id": 1,
  "subject": "Fix login bug",
  "description": {"format": "markdown", "raw": "Login fails with special characters", "html": "<p>Login fails</p>"},
  "startDate": "2024-01-01",
  "dueDate": "2024-01-15",
  "estimatedTime": "PT8H",
  "percentageDone": 50,
  "lockVersion": 3,
  "createdAt": "2024-01-01T00:00:00Z",
  "updatedAt": "2024-01-02T00:00:00Z",
  "_embedded": {
    "status": {"id": 1, "name": "New", "color": "#0066CC"},
    "type": {"id": 2, "name": "Bug", "color": "#CC0000"},
    "priority": {"id": 8, "name": "High"},
    "project": {"id": 1, "identifier": "demo-project", "name": "Demo Project"},
    "author": {"id": 1, "name": "John Doe", "email": "john@example.com"},
    "assignee": {"id": 2, "name": "Jane Smith", "email": "jane@example.com"}
  }
}`

func TestWorkPackageFromHAL(t *testing.T) {
	var doc workPackageDoc
	if err := json.Unmarshal([]byte(workPackageFixture), &doc); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	got := doc.toWorkPackage()

	want := WorkPackage{
		ID:             1,
		Subject:        "Fix login bug",
		Description:    "Login fails with special characters",
		StartDate:      "2024-01-01",
		DueDate:        "2024-01-15",
		EstimatedHours: 8,
		PercentageDone: 50,
		LockVersion:    3,
		Status:         &Status{ID: 1, Name: "New", Color: "#0066CC"},
		Type:           &Type{ID: 2, Name: "Bug", Color: "#CC0000"},
		Priority:       &Priority{ID: 8, Name: "High"},
		Project:        &Project{ID: 1, Identifier: "demo-project", Name: "Demo Project", Active: true},
		Author:         &User{ID: 1, Name: "John Doe", Email: "john@example.com"},
		Assignee:       &User{ID: 2, Name: "Jane Smith", Email: "jane@example.com"},
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("work package mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectFromHALDefaults(t *testing.T) {
	var doc projectDoc
	if err := json.Unmarshal([]byte(`{"id": 2, "identifier": "p", "name": "P"}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p := doc.toProject()
	if !p.Active {
		t.Fatal("a project without an active field should default to active")
	}
	if !p.CreatedAt.IsZero() {
		t.Fatal("missing createdAt should yield zero time")
	}
}

func TestParseTimestampMalformed(t *testing.T) {
	if got := parseTimestamp("not-a-time"); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}
