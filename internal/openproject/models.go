package openproject

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is a work package status.
type Status struct {
	ID    int
	Name  string
	Color string
}

// Type is a work package type.
type Type struct {
	ID    int
	Name  string
	Color string
}

// Priority is a work package priority.
type Priority struct {
	ID   int
	Name string
}

// User is an OpenProject principal.
type User struct {
	ID    int
	Name  string
	Email string
}

// DisplayName falls back from name to email to a synthetic label.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return fmt.Sprintf("User %d", u.ID)
}

// Project is an OpenProject project.
type Project struct {
	ID          int
	Identifier  string
	Name        string
	Active      bool
	Public      bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkPackage is the central domain entity.
type WorkPackage struct {
	ID             int
	Subject        string
	Description    string
	StartDate      string // ISO date as sent by the server, e.g. "2024-01-15"
	DueDate        string
	EstimatedHours float64
	PercentageDone int
	LockVersion    int
	Status         *Status
	Type           *Type
	Priority       *Priority
	Project        *Project
	Author         *User
	Assignee       *User
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// formatted is the HAL representation of rich text fields.
type formatted struct {
	Format string `json:"format"`
	Raw    string `json:"raw"`
	HTML   string `json:"html"`
}

type statusDoc struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type typeDoc struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type priorityDoc struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type userDoc struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type projectDoc struct {
	ID          int        `json:"id"`
	Identifier  string     `json:"identifier"`
	Name        string     `json:"name"`
	Active      *bool      `json:"active"`
	Public      bool       `json:"public"`
	Description *formatted `json:"description"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

type workPackageDoc struct {
	ID             int        `json:"id"`
	Subject        string     `json:"subject"`
	Description    *formatted `json:"description"`
	StartDate      string     `json:"startDate"`
	DueDate        string     `json:"dueDate"`
	EstimatedTime  string     `json:"estimatedTime"`
	PercentageDone int        `json:"percentageDone"`
	LockVersion    int        `json:"lockVersion"`
	CreatedAt      string     `json:"createdAt"`
	UpdatedAt      string     `json:"updatedAt"`
	Embedded       struct {
		Status   *statusDoc   `json:"status"`
		Type     *typeDoc     `json:"type"`
		Priority *priorityDoc `json:"priority"`
		Project  *projectDoc  `json:"project"`
		Author   *userDoc     `json:"author"`
		Assignee *userDoc     `json:"assignee"`
	} `json:"_embedded"`
}

func (d projectDoc) toProject() Project {
	p := Project{
		ID:         d.ID,
		Identifier: d.Identifier,
		Name:       d.Name,
		Active:     true,
		Public:     d.Public,
		CreatedAt:  parseTimestamp(d.CreatedAt),
		UpdatedAt:  parseTimestamp(d.UpdatedAt),
	}
	if d.Active != nil {
		p.Active = *d.Active
	}
	if d.Description != nil {
		p.Description = d.Description.Raw
	}
	return p
}

func (d workPackageDoc) toWorkPackage() WorkPackage {
	wp := WorkPackage{
		ID:             d.ID,
		Subject:        d.Subject,
		StartDate:      d.StartDate,
		DueDate:        d.DueDate,
		EstimatedHours: ParseISODuration(d.EstimatedTime),
		PercentageDone: d.PercentageDone,
		LockVersion:    d.LockVersion,
		CreatedAt:      parseTimestamp(d.CreatedAt),
		UpdatedAt:      parseTimestamp(d.UpdatedAt),
	}
	if d.Description != nil {
		wp.Description = d.Description.Raw
	}
	if s := d.Embedded.Status; s != nil {
		wp.Status = &Status{ID: s.ID, Name: s.Name, Color: s.Color}
	}
	if t := d.Embedded.Type; t != nil {
		wp.Type = &Type{ID: t.ID, Name: t.Name, Color: t.Color}
	}
	if p := d.Embedded.Priority; p != nil {
		wp.Priority = &Priority{ID: p.ID, Name: p.Name}
	}
	if p := d.Embedded.Project; p != nil {
		proj := p.toProject()
		wp.Project = &proj
	}
	if u := d.Embedded.Author; u != nil {
		wp.Author = &User{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if u := d.Embedded.Assignee; u != nil {
		wp.Assignee = &User{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return wp
}

// parseTimestamp parses the server's RFC3339 timestamps. Absent or
// malformed values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseISODuration converts the subset of ISO 8601 durations OpenProject
// emits for estimatedTime into hours.
//
//	PT8H    -> 8.0
//	PT4H30M -> 4.5
//	PT30M   -> 0.5
func ParseISODuration(duration string) float64 {
	if !strings.HasPrefix(duration, "PT") {
		return 0
	}
	rest := duration[2:]

	var hours, minutes float64
	if i := strings.Index(rest, "H"); i >= 0 {
		if v, err := strconv.ParseFloat(rest[:i], 64); err == nil {
			hours = v
		}
		rest = rest[i+1:]
	}
	if i := strings.Index(rest, "M"); i >= 0 {
		if v, err := strconv.ParseFloat(rest[:i], 64); err == nil {
			minutes = v
		}
	}
	return hours + minutes/60
}

// FormatHours renders estimated hours the way the detail view shows them:
// whole hours without a decimal, fractions with one.
func FormatHours(hours float64) string {
	if hours == float64(int(hours)) {
		return fmt.Sprintf("%dh", int(hours))
	}
	return fmt.Sprintf("%.1fh", hours)
}
