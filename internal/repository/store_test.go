package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/models"
)

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestRecoverAfterBackendWipe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user("u1")
	alpha := f.project("Alpha", u1.ID)
	beta := f.project("Beta", u1.ID)
	task := f.task("T1", alpha.ID, u1.ID)
	require.NoError(t, f.store.Cascade.DeleteProject(ctx, beta.ID))

	f.wipe(models.KindProject, models.KindTask)
	f.restart()

	report, err := f.store.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Restored[models.KindProject])
	assert.Equal(t, 1, report.Restored[models.KindTask])

	got, err := f.store.Projects.FindByID(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, alpha.Title, got.Title)
	assert.Equal(t, alpha.Description, got.Description)
	assert.Equal(t, alpha.OwnerID, got.OwnerID)

	ok, err := f.mem.Exists(ctx, "Project", alpha.ID)
	require.NoError(t, err)
	assert.True(t, ok, "restored into the blob store, not just served from snapshot")

	_, err = f.store.Projects.FindByID(ctx, beta.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	gotTask, err := f.store.Tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, gotTask.Title)

	users, err := f.store.Users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1, "users are untouched by the wipe")
}

func TestRecoverIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha := f.project("Alpha", "u1")
	f.task("T1", alpha.ID, "u1")
	gone := f.project("Gone", "u1")
	require.NoError(t, f.store.Cascade.DeleteProject(ctx, gone.ID))
	f.wipe(models.KindProject, models.KindTask)

	visible := func() ([]string, []string) {
		projects, err := f.store.Projects.List(ctx)
		require.NoError(t, err)
		tasks, err := f.store.Tasks.List(ctx)
		require.NoError(t, err)
		var p, ts []string
		for _, x := range projects {
			p = append(p, x.ID)
		}
		for _, x := range tasks {
			ts = append(ts, x.ID)
		}
		return p, ts
	}

	f.restart()
	_, err := f.store.Recover(ctx)
	require.NoError(t, err)
	p1, t1 := visible()

	_, err = f.store.Recover(ctx)
	require.NoError(t, err)
	p2, t2 := visible()

	assert.Equal(t, p1, p2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, []string{alpha.ID}, p1)
}

func TestRecoverPurgesLingeringBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project("Alpha", "u1")

	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "delete" })
	err := f.store.Cascade.DeleteProject(ctx, p.ID)
	var ce *CascadeError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Deleted)

	ok, err := f.mem.Exists(ctx, "Project", p.ID)
	require.NoError(t, err)
	require.True(t, ok, "blob left behind by the failed cleanup")

	f.blobs.setFailOn(nil)
	f.restart()
	report, err := f.store.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Equal(t, 1, report.Compacted)

	ok, err = f.mem.Exists(ctx, "Project", p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.tracker.IsDeleted(models.KindProject, p.ID), "nothing left to mask")

	_, err = f.store.Projects.FindByID(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecoverKeepsTombstoneWhileBlobRemains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := models.NewComment("hi", "t1", "u1")
	require.NoError(t, f.store.Comments.Create(ctx, c))
	require.NoError(t, f.tracker.MarkDeleted(ctx, models.KindComment, c.ID))

	f.blobs.setFailOn(func(op, _, _ string) bool { return op == "delete" })
	f.restart()
	report, err := f.store.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Compacted)
	assert.True(t, f.tracker.IsDeleted(models.KindComment, c.ID))

	_, err = f.store.Comments.FindByID(ctx, c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecoverBackendUnavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mem.Close())

	_, err := f.store.Recover(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, blobstore.ErrBackendUnavailable))
}

func TestRecoverSkipsUnreadableSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha := f.project("Alpha", "u1")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "projects", "broken.yaml"), []byte("member_ids: {a: b}\n"), 0o644))
	f.wipe(models.KindProject)

	f.restart()
	report, err := f.store.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Restored[models.KindProject])

	_, err = f.store.Projects.FindByID(ctx, alpha.ID)
	assert.NoError(t, err)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task("T1", "p1", "u1")
	require.NoError(t, f.mem.Put(ctx, "Task", task.ID, []byte("{broken")))
	require.NoError(t, f.mem.Put(ctx, "Comment", "c-bad", []byte("\x80garbage")))
	good := models.NewComment("fine", "t1", "u1")
	require.NoError(t, f.store.Comments.Create(ctx, good))

	report, err := f.store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired[models.KindTask])
	assert.Equal(t, 1, report.Removed[models.KindComment])

	got, err := f.store.Tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "T1", got.Title)

	assert.True(t, f.tracker.IsDeleted(models.KindComment, "c-bad"))
	ok, err := f.mem.Exists(ctx, "Comment", "c-bad")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.store.Comments.FindByID(ctx, good.ID)
	assert.NoError(t, err)
}
