package models

import (
	"slices"
	"time"
)

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	MemberIDs   []string  `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewProject(title, description, ownerID string) *Project {
	now := Now()
	return &Project{
		ID:          NewID(),
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		MemberIDs:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Project) EntityID() string   { return p.ID }
func (p *Project) EntityKind() Kind   { return KindProject }
func (p *Project) Created() time.Time { return p.CreatedAt }

// AddMember appends userID to the member list. It reports false when the
// user already is a member.
func (p *Project) AddMember(userID string) bool {
	if p.HasMember(userID) {
		return false
	}
	p.MemberIDs = append(p.MemberIDs, userID)
	return true
}

// RemoveMember drops userID from the member list, keeping the order of the
// remaining members.
func (p *Project) RemoveMember(userID string) bool {
	i := slices.Index(p.MemberIDs, userID)
	if i < 0 {
		return false
	}
	p.MemberIDs = slices.Delete(p.MemberIDs, i, i+1)
	return true
}

func (p *Project) HasMember(userID string) bool {
	return slices.Contains(p.MemberIDs, userID)
}

// CanAccess reports whether userID owns or is a member of the project.
func (p *Project) CanAccess(userID string) bool {
	return p.OwnerID == userID || p.HasMember(userID)
}

func (p *Project) Touch() {
	p.UpdatedAt = Now()
}

func (p *Project) ApplyDefaults() {
	if p.MemberIDs == nil {
		p.MemberIDs = []string{}
	}
	p.MemberIDs = dedupe(p.MemberIDs)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
}

// dedupe drops repeated ids, keeping the first occurrence of each.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
