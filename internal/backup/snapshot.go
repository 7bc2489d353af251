package backup

import (
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/project-tracker/internal/models"
)

const defaultTitle = "Untitled"

// timeLayouts are tried in order when parsing snapshot timestamps. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type projectSnapshot struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	OwnerID     string   `yaml:"owner_id"`
	MemberIDs   []string `yaml:"member_ids"`
	CreatedAt   string   `yaml:"created_at"`
	UpdatedAt   string   `yaml:"updated_at"`
}

type taskSnapshot struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	ProjectID   string `yaml:"project_id"`
	CreatorID   string `yaml:"creator_id"`
	Status      string `yaml:"status"`
	Priority    string `yaml:"priority"`
	AssigneeID  string `yaml:"assignee_id,omitempty"`
	DueDate     string `yaml:"due_date,omitempty"`
	CreatedAt   string `yaml:"created_at"`
	UpdatedAt   string `yaml:"updated_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// timeOr parses s, falling back to def when s is empty.
func timeOr(s string, def time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return parseTime(s)
}

func fromProject(p *models.Project) projectSnapshot {
	members := p.MemberIDs
	if members == nil {
		members = []string{}
	}
	return projectSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		MemberIDs:   members,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

// toProject rebuilds a project. fallbackID and fallbackTime stand in for a
// missing id and created_at.
func (s projectSnapshot) toProject(fallbackID string, fallbackTime time.Time) (*models.Project, error) {
	created, err := timeOr(s.CreatedAt, fallbackTime)
	if err != nil {
		return nil, err
	}
	updated, err := timeOr(s.UpdatedAt, created)
	if err != nil {
		return nil, err
	}
	p := &models.Project{
		ID:          firstNonEmpty(s.ID, fallbackID),
		Title:       firstNonEmpty(s.Title, defaultTitle),
		Description: s.Description,
		OwnerID:     s.OwnerID,
		MemberIDs:   s.MemberIDs,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	p.ApplyDefaults()
	return p, nil
}

func fromTask(t *models.Task) taskSnapshot {
	snap := taskSnapshot{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ProjectID:   t.ProjectID,
		CreatorID:   t.CreatorID,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		AssigneeID:  t.AssigneeID,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.DueDate != nil {
		snap.DueDate = formatTime(*t.DueDate)
	}
	return snap
}

func (s taskSnapshot) toTask(fallbackID string, fallbackTime time.Time) (*models.Task, error) {
	created, err := timeOr(s.CreatedAt, fallbackTime)
	if err != nil {
		return nil, err
	}
	updated, err := timeOr(s.UpdatedAt, created)
	if err != nil {
		return nil, err
	}
	t := &models.Task{
		ID:          firstNonEmpty(s.ID, fallbackID),
		Title:       firstNonEmpty(s.Title, defaultTitle),
		Description: s.Description,
		Status:      models.TaskStatus(s.Status),
		Priority:    models.TaskPriority(s.Priority),
		ProjectID:   s.ProjectID,
		CreatorID:   s.CreatorID,
		AssigneeID:  s.AssigneeID,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if strings.TrimSpace(s.DueDate) != "" {
		due, err := parseTime(s.DueDate)
		if err != nil {
			return nil, err
		}
		t.DueDate = &due
	}
	t.ApplyDefaults()
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
