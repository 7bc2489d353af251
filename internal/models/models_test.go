package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectMembers(t *testing.T) {
	p := NewProject("Launch", "", "owner")
	require.NotEmpty(t, p.ID)

	assert.True(t, p.AddMember("a"))
	assert.True(t, p.AddMember("b"))
	assert.False(t, p.AddMember("a"), "duplicates are rejected")
	assert.Equal(t, []string{"a", "b"}, p.MemberIDs)

	assert.True(t, p.CanAccess("owner"))
	assert.True(t, p.CanAccess("b"))
	assert.False(t, p.CanAccess("stranger"))

	assert.True(t, p.RemoveMember("a"))
	assert.False(t, p.RemoveMember("a"))
	assert.Equal(t, []string{"b"}, p.MemberIDs)
}

func TestTaskApplyDefaults(t *testing.T) {
	task := &Task{ID: "t1", Status: "bogus"}
	task.ApplyDefaults()

	assert.Equal(t, TaskStatusTodo, task.Status)
	assert.Equal(t, TaskPriorityMedium, task.Priority)
}

func TestProjectApplyDefaultsDropsRepeatedMembers(t *testing.T) {
	p := &Project{ID: "p1", MemberIDs: []string{"a", "b", "a", "c", "b"}}
	p.ApplyDefaults()

	assert.Equal(t, []string{"a", "b", "c"}, p.MemberIDs)
}

func TestNewIDsAreUnique(t *testing.T) {
	a := NewUser("alice", "alice@example.com")
	b := NewUser("bob", "bob@example.com")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, RoleUser, a.Role)
}

func TestKindPlural(t *testing.T) {
	assert.Equal(t, "projects", KindProject.Plural())
	assert.Equal(t, "attachments", KindAttachment.Plural())
	assert.False(t, Kind("Organization").Valid())
}
