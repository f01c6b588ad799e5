package openproject

import (
	"context"
	"fmt"
	"net/http"
)

// Draft holds the fields for a new work package. ProjectID, Subject and
// TypeID are required; the rest are optional (zero means "not set").
type Draft struct {
	ProjectID   int
	Subject     string
	TypeID      int
	Description string
	StatusID    int
	PriorityID  int
	AssigneeID  int
}

// Patch holds a partial update of an existing work package. Nil fields are
// left untouched. LockVersion must match the server's current value or the
// update fails with ErrConflict.
type Patch struct {
	LockVersion int
	Subject     *string
	Description *string
	StatusID    *int
	PriorityID  *int
	AssigneeID  *int
}

type link struct {
	Href string `json:"href"`
}

// payload is the wire shape for create and update requests. Optional links
// and fields are omitted when empty so the server keeps its defaults.
type wpPayload struct {
	Subject     string          `json:"subject,omitempty"`
	LockVersion *int            `json:"lockVersion,omitempty"`
	Description *formatted      `json:"description,omitempty"`
	Links       map[string]link `json:"_links,omitempty"`
}

func markdown(raw string) *formatted {
	return &formatted{Format: "markdown", Raw: raw}
}

// CreateWorkPackage creates a work package from the draft.
func (c *Client) CreateWorkPackage(ctx context.Context, draft Draft) (*WorkPackage, error) {
	if draft.ProjectID <= 0 {
		return nil, fmt.Errorf("openproject: draft needs a project")
	}
	if draft.Subject == "" {
		return nil, fmt.Errorf("openproject: draft needs a subject")
	}
	if draft.TypeID <= 0 {
		return nil, fmt.Errorf("openproject: draft needs a type")
	}

	body := wpPayload{
		Subject: draft.Subject,
		Links: map[string]link{
			"project": {Href: fmt.Sprintf("%s/projects/%d", APIRoot, draft.ProjectID)},
			"type":    {Href: fmt.Sprintf("%s/types/%d", APIRoot, draft.TypeID)},
		},
	}
	if draft.Description != "" {
		body.Description = markdown(draft.Description)
	}
	if draft.StatusID > 0 {
		body.Links["status"] = link{Href: fmt.Sprintf("%s/statuses/%d", APIRoot, draft.StatusID)}
	}
	if draft.PriorityID > 0 {
		body.Links["priority"] = link{Href: fmt.Sprintf("%s/priorities/%d", APIRoot, draft.PriorityID)}
	}
	if draft.AssigneeID > 0 {
		body.Links["assignee"] = link{Href: fmt.Sprintf("%s/users/%d", APIRoot, draft.AssigneeID)}
	}

	var doc workPackageDoc
	if err := c.send(ctx, http.MethodPost, "/work_packages", body, &doc); err != nil {
		return nil, err
	}
	wp := doc.toWorkPackage()
	return &wp, nil
}

// UpdateWorkPackage applies the patch to an existing work package. The
// patch's LockVersion implements optimistic locking: a stale value yields
// ErrConflict and the caller should refetch.
func (c *Client) UpdateWorkPackage(ctx context.Context, id int, patch Patch) (*WorkPackage, error) {
	body := wpPayload{LockVersion: &patch.LockVersion}
	if patch.Subject != nil {
		body.Subject = *patch.Subject
	}
	if patch.Description != nil {
		body.Description = markdown(*patch.Description)
	}

	links := map[string]link{}
	if patch.StatusID != nil {
		links["status"] = link{Href: fmt.Sprintf("%s/statuses/%d", APIRoot, *patch.StatusID)}
	}
	if patch.PriorityID != nil {
		links["priority"] = link{Href: fmt.Sprintf("%s/priorities/%d", APIRoot, *patch.PriorityID)}
	}
	if patch.AssigneeID != nil {
		if *patch.AssigneeID > 0 {
			links["assignee"] = link{Href: fmt.Sprintf("%s/users/%d", APIRoot, *patch.AssigneeID)}
		} else {
			// Explicit unassign.
			links["assignee"] = link{}
		}
	}
	if len(links) > 0 {
		body.Links = links
	}

	var doc workPackageDoc
	if err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/work_packages/%d", id), body, &doc); err != nil {
		return nil, err
	}
	wp := doc.toWorkPackage()
	return &wp, nil
}

// DeleteWorkPackage removes a work package. The server answers 204.
func (c *Client) DeleteWorkPackage(ctx context.Context, id int) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/work_packages/%d", id), nil, nil)
}

// formDoc is the relevant slice of the work package form responses: the
// allowed values for the status field given the current type and workflow.
type formDoc struct {
	Embedded struct {
		Schema struct {
			Status struct {
				Embedded struct {
					AllowedValues []statusDoc `json:"allowedValues"`
				} `json:"_embedded"`
			} `json:"status"`
		} `json:"schema"`
	} `json:"_embedded"`
}

func (d formDoc) statuses() []Status {
	values := d.Embedded.Schema.Status.Embedded.AllowedValues
	out := make([]Status, 0, len(values))
	for _, s := range values {
		out = append(out, Status{ID: s.ID, Name: s.Name, Color: s.Color})
	}
	return out
}

// AllowedStatusesForNew asks the creation form which statuses a new work
// package of the given type may start in.
func (c *Client) AllowedStatusesForNew(ctx context.Context, projectID, typeID int) ([]Status, error) {
	body := wpPayload{
		Links: map[string]link{
			"type": {Href: fmt.Sprintf("%s/types/%d", APIRoot, typeID)},
		},
	}
	var doc formDoc
	path := fmt.Sprintf("/projects/%d/work_packages/form", projectID)
	if err := c.send(ctx, http.MethodPost, path, body, &doc); err != nil {
		return nil, err
	}
	return doc.statuses(), nil
}

// AllowedStatusTransitions asks the edit form which statuses an existing
// work package may move to. typeID may be 0 to keep the current type;
// lockVersion travels with the form so workflow checks see the same
// revision the user is editing.
func (c *Client) AllowedStatusTransitions(ctx context.Context, workPackageID, typeID, lockVersion int) ([]Status, error) {
	body := wpPayload{LockVersion: &lockVersion}
	if typeID > 0 {
		body.Links = map[string]link{
			"type": {Href: fmt.Sprintf("%s/types/%d", APIRoot, typeID)},
		}
	}
	var doc formDoc
	path := fmt.Sprintf("/work_packages/%d/form", workPackageID)
	if err := c.send(ctx, http.MethodPost, path, body, &doc); err != nil {
		return nil, err
	}
	return doc.statuses(), nil
}
