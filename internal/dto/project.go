package dto

import (
	"time"

	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/services"
)

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	MemberIDs   []string  `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectSummaryDTO is a project in list responses
type ProjectSummaryDTO struct {
	ProjectDTO
	Owner       *UserDTO `json:"owner,omitempty"`
	TaskCount   int      `json:"task_count"`
	MemberCount int      `json:"member_count"`
}

// ProjectDetailDTO is a single project with its people and tasks
type ProjectDetailDTO struct {
	ProjectDTO
	Owner   *UserDTO          `json:"owner,omitempty"`
	Members []UserDTO         `json:"members"`
	Tasks   []TaskListItemDTO `json:"tasks"`
}

// ProjectListResponse groups the projects a user owns and belongs to
type ProjectListResponse struct {
	Owned  []ProjectSummaryDTO `json:"owned"`
	Member []ProjectSummaryDTO `json:"member"`
}

// DashboardDTO is the landing view of a user
type DashboardDTO struct {
	ProjectListResponse
	AssignedTasks []TaskListItemDTO `json:"assigned_tasks"`
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(p models.Project) ProjectDTO {
	members := p.MemberIDs
	if members == nil {
		members = []string{}
	}
	return ProjectDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		MemberIDs:   members,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ToProjectSummaryDTO(s services.ProjectSummary) ProjectSummaryDTO {
	return ProjectSummaryDTO{
		ProjectDTO:  ToProjectDTO(*s.Project),
		Owner:       toUserDTOPtr(s.Owner),
		TaskCount:   s.TaskCount,
		MemberCount: s.MemberCount,
	}
}

func ToProjectListResponse(owned, member []services.ProjectSummary) ProjectListResponse {
	resp := ProjectListResponse{
		Owned:  make([]ProjectSummaryDTO, len(owned)),
		Member: make([]ProjectSummaryDTO, len(member)),
	}
	for i, s := range owned {
		resp.Owned[i] = ToProjectSummaryDTO(s)
	}
	for i, s := range member {
		resp.Member[i] = ToProjectSummaryDTO(s)
	}
	return resp
}

// ToProjectDetailDTO converts a resolved project to ProjectDetailDTO
func ToProjectDetailDTO(d *services.ProjectDetail) ProjectDetailDTO {
	out := ProjectDetailDTO{
		ProjectDTO: ToProjectDTO(*d.Project),
		Owner:      toUserDTOPtr(d.Owner),
		Members:    make([]UserDTO, len(d.Members)),
		Tasks:      make([]TaskListItemDTO, len(d.Tasks)),
	}
	for i, m := range d.Members {
		out.Members[i] = ToUserDTO(*m)
	}
	for i, t := range d.Tasks {
		item := ToTaskListItemDTO(*t)
		item.Assignee = toUserDTOPtr(d.Assignees[t.ID])
		out.Tasks[i] = item
	}
	return out
}

func ToDashboardDTO(d *services.Dashboard) DashboardDTO {
	out := DashboardDTO{
		ProjectListResponse: ToProjectListResponse(d.Owned, d.Member),
		AssignedTasks:       make([]TaskListItemDTO, len(d.Assigned)),
	}
	for i, t := range d.Assigned {
		out.AssignedTasks[i] = ToTaskListItemDTO(*t)
	}
	return out
}
