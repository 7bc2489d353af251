package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/models"
)

func TestSaveThenGetEveryKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.user("alice")
	p := f.project("Alpha", u.ID)
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := models.NewTask("T1", "desc", p.ID, u.ID)
	task.DueDate = &due
	task.AssigneeID = u.ID
	require.NoError(t, f.store.Tasks.Create(ctx, task))
	c := models.NewComment("hello", task.ID, u.ID)
	require.NoError(t, f.store.Comments.Create(ctx, c))
	a := models.NewAttachment("spec.pdf", "uploads/spec.pdf", task.ID, u.ID)
	require.NoError(t, f.store.Attachments.Create(ctx, a))

	gotUser, err := f.store.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, gotUser)

	gotProject, err := f.store.Projects.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, gotProject)

	gotTask, err := f.store.Tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, gotTask)

	gotComment, err := f.store.Comments.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, gotComment)

	gotAttachment, err := f.store.Attachments.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, gotAttachment)
}

func TestTombstoneDominatesBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("alice")
	p := f.project("Alpha", u.ID)

	require.NoError(t, f.tracker.MarkDeleted(ctx, models.KindProject, p.ID))

	ok, err := f.mem.Exists(ctx, "Project", p.ID)
	require.NoError(t, err)
	require.True(t, ok, "blob still physically present")

	_, err = f.store.Projects.FindByID(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := f.store.Projects.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, f.store.Projects.Update(ctx, p))
	got, err := f.store.Projects.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
}

func TestResaveSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("alice")

	require.NoError(t, f.store.Users.Delete(ctx, u.ID))
	require.NoError(t, f.store.Users.Create(ctx, u))

	f.restart()
	require.NoError(t, f.tracker.Load(ctx))
	got, err := f.store.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Username)
}

func TestFailedResaveStaysHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project("Alpha", "u1")
	require.NoError(t, f.store.Cascade.DeleteProject(ctx, p.ID))

	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "srem" })
	err := f.store.Projects.Create(ctx, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrBackendUnavailable))

	_, err = f.store.Projects.FindByID(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound), "a save that reported failure is not visible")

	// After a restart the tombstone still wins, as the failed save reported.
	f.blobs.setFailOn(nil)
	f.restart()
	_, err = f.store.Recover(ctx)
	require.NoError(t, err)
	_, err = f.store.Projects.FindByID(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	// Retrying once the backend is back makes it visible for good.
	require.NoError(t, f.store.Projects.Create(ctx, p))
	f.restart()
	_, err = f.store.Recover(ctx)
	require.NoError(t, err)
	got, err := f.store.Projects.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Title)
}

func TestCorruptBlobIsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("alice")
	require.NoError(t, f.mem.Put(ctx, "User", "broken", []byte("\x80\x04garbage")))

	_, err := f.store.Users.FindByID(ctx, "broken")
	assert.True(t, errors.Is(err, ErrNotFound))

	users, err := f.store.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)
}

func TestGetFallsBackToScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := models.NewComment("legacy", "t1", "u1")
	data, err := codec.Encode(c)
	require.NoError(t, err)
	require.NoError(t, f.mem.Put(ctx, "Comment", "legacy-key", data))

	got, err := f.store.Comments.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.Content)
}

func TestGetFallsBackToSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project("Alpha", "u1")
	f.wipe(models.KindProject)

	got, err := f.store.Projects.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
}

func TestGetBackendFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("alice")
	p := f.project("Alpha", u.ID)

	f.blobs.setFailOn(func(op, ns, _ string) bool { return op == "get" })

	_, err := f.store.Users.FindByID(ctx, u.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrBackendUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))

	got, err := f.store.Projects.FindByID(ctx, p.ID)
	require.NoError(t, err, "projects are served from snapshots while the backend is down")
	assert.Equal(t, p.ID, got.ID)
}

func TestListSkipsFailingEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user("alice")
	b := f.user("bob")

	f.blobs.setFailOn(func(op, _, key string) bool { return op == "get" && key == a.ID })

	users, err := f.store.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, b.ID, users[0].ID)
}

func TestListFallsBackToSnapshotsWhenEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.project("Alpha", "u1")
	gone := f.project("Beta", "u1")
	require.NoError(t, f.tracker.MarkDeleted(ctx, models.KindProject, gone.ID))
	f.wipe(models.KindProject)

	projects, err := f.store.Projects.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, kept.ID, projects[0].ID)
}

func TestListBackendFailureWithoutSnapshots(t *testing.T) {
	f := newFixture(t)
	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "list" })

	_, err := f.store.Users.List(context.Background())
	assert.True(t, errors.Is(err, blobstore.ErrBackendUnavailable))
}

func TestSecondaryLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user("owner")
	member := f.user("member")
	other := f.user("other")

	p1 := f.project("Alpha", owner.ID)
	p1.AddMember(member.ID)
	require.NoError(t, f.store.Projects.Update(ctx, p1))
	p2 := f.project("Beta", other.ID)

	owned, err := f.store.Projects.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, p1.ID, owned[0].ID)

	memberOf, err := f.store.Projects.ListByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, memberOf, 1)

	visible, err := f.store.Projects.ListForUser(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, p2.ID, visible[0].ID)

	t1 := f.task("T1", p1.ID, owner.ID)
	t1.AssigneeID = member.ID
	require.NoError(t, f.store.Tasks.Update(ctx, t1))
	f.task("T2", p1.ID, owner.ID)
	f.task("T3", p2.ID, other.ID)

	n, err := f.store.CountProjectTasks(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assigned, err := f.store.Tasks.ListByAssignee(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, t1.ID, assigned[0].ID)

	members, err := f.store.CountProjectMembers(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, members)

	gotOwner, err := f.store.ProjectOwner(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, gotOwner.ID)

	gotProject, err := f.store.TaskProject(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, gotProject.ID)

	byEmail, err := f.store.Users.FindByEmail(ctx, "MEMBER@example.com")
	require.NoError(t, err)
	assert.Equal(t, member.ID, byEmail.ID)
}

func TestCommentsOrderedByCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		content string
		offset  time.Duration
	}{
		{"third", 2 * time.Minute},
		{"first", 0},
		{"second", time.Minute},
	} {
		c := models.NewComment(tc.content, "t1", "u1")
		c.CreatedAt = base.Add(tc.offset)
		require.NoError(t, f.store.Comments.Create(ctx, c))
	}
	require.NoError(t, f.store.Comments.Create(ctx, models.NewComment("elsewhere", "t2", "u1")))

	comments, err := f.store.Comments.ListByTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "second", comments[1].Content)
	assert.Equal(t, "third", comments[2].Content)
}

func TestUsernameUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bob := models.NewUser("bob", "bob@x.com")
	require.NoError(t, f.store.Users.Create(ctx, bob))

	second := models.NewUser("bob", "other@x.com")
	err := f.store.Users.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))
	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "username", dup.Field)

	err = f.store.Users.Create(ctx, models.NewUser("robert", "BOB@x.com"))
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field)

	require.NoError(t, f.store.Users.Delete(ctx, bob.ID))
	assert.NoError(t, f.store.Users.Create(ctx, second), "a tombstoned user frees the username")

	second.Company = "Acme"
	assert.NoError(t, f.store.Users.Update(ctx, second), "updating yourself is not a duplicate")
}

func TestFindByUsernameNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Users.FindByUsername(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, `user with username "ghost" not found`, err.Error())
}

func TestSaveFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "put" })

	err := f.store.Projects.Create(context.Background(), models.NewProject("Alpha", "", "u1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrBackendUnavailable))
}

func TestDeleteReportsTombstoneFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := models.NewComment("hi", "t1", "u1")
	require.NoError(t, f.store.Comments.Create(ctx, c))

	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "sadd" })
	err := f.store.Comments.Delete(ctx, c.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrBackendUnavailable))
}

func TestDeleteIgnoresCleanupFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := models.NewComment("hi", "t1", "u1")
	require.NoError(t, f.store.Comments.Create(ctx, c))

	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "delete" })
	require.NoError(t, f.store.Comments.Delete(ctx, c.ID))

	_, err := f.store.Comments.FindByID(ctx, c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
