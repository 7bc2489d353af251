package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/yukikurage/project-tracker/internal/backup"
	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/constants"
	"github.com/yukikurage/project-tracker/internal/logging"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/repository"
	"github.com/yukikurage/project-tracker/internal/tombstone"
	"github.com/yukikurage/project-tracker/internal/uploads"
)

// ServicesTestSuite runs the services over an in-memory blob store, a
// temporary snapshot directory and a local upload directory.
type ServicesTestSuite struct {
	suite.Suite
	ctx       context.Context
	blobs     *blobstore.MemoryStore
	snapshots *backup.Store
	store     *repository.Store
	files     *uploads.LocalStore
	auth      *AuthService
	projects  *ProjectService
	tasks     *TaskService

	alice *models.User
	bob   *models.User
	carol *models.User
}

func (suite *ServicesTestSuite) SetupTest() {
	suite.ctx = context.Background()
	log := logging.Discard()

	snapshots := backup.New(suite.T().TempDir(), log)
	suite.Require().NoError(snapshots.Init())
	files, err := uploads.NewLocalStore(suite.T().TempDir())
	suite.Require().NoError(err)
	suite.files = files

	blobs := blobstore.NewMemoryStore()
	suite.blobs = blobs
	suite.snapshots = snapshots
	suite.store, err = repository.New(repository.Deps{
		Blobs:      blobs,
		Tombstones: tombstone.New(blobs, log),
		Snapshots:  snapshots,
		Files:      files,
		Logger:     log,
	})
	suite.Require().NoError(err)

	suite.auth = NewAuthService(suite.store.Users, log)
	suite.projects = NewProjectService(suite.store, log)
	suite.tasks = NewTaskService(suite.store, suite.projects, files, log)

	suite.alice = suite.signup("alice")
	suite.bob = suite.signup("bob")
	suite.carol = suite.signup("carol")
}

func (suite *ServicesTestSuite) signup(name string) *models.User {
	u, err := suite.auth.Signup(suite.ctx, SignupInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "supersecret",
	})
	suite.Require().NoError(err)
	return u
}

func (suite *ServicesTestSuite) project(title string, owner *models.User, members ...*models.User) *models.Project {
	p, err := suite.projects.Create(suite.ctx, CreateProjectInput{Title: title, OwnerID: owner.ID})
	suite.Require().NoError(err)
	for _, m := range members {
		p, err = suite.projects.AddMember(suite.ctx, p.ID, owner.ID, m.Username)
		suite.Require().NoError(err)
	}
	return p
}

func (suite *ServicesTestSuite) task(title string, p *models.Project, creator *models.User) *models.Task {
	t, err := suite.tasks.CreateTask(suite.ctx, CreateTaskInput{Title: title, ProjectID: p.ID, CreatorID: creator.ID})
	suite.Require().NoError(err)
	return t
}

func (suite *ServicesTestSuite) TestSignupValidation() {
	tests := []struct {
		name  string
		input SignupInput
		want  error
	}{
		{"short username", SignupInput{Username: "ab", Email: "ab@example.com", Password: "supersecret"}, ErrUsernameTooShort},
		{"bad email", SignupInput{Username: "dave", Email: "not-an-email", Password: "supersecret"}, ErrInvalidEmail},
		{"short password", SignupInput{Username: "dave", Email: "dave@example.com", Password: "short"}, ErrPasswordTooShort},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.auth.Signup(suite.ctx, tt.input)
			suite.ErrorIs(err, tt.want)
		})
	}
}

func (suite *ServicesTestSuite) TestSignupDuplicates() {
	_, err := suite.auth.Signup(suite.ctx, SignupInput{Username: "alice", Email: "new@example.com", Password: "supersecret"})
	var dup *repository.DuplicateKeyError
	suite.Require().ErrorAs(err, &dup)
	suite.Equal("username", dup.Field)

	_, err = suite.auth.Signup(suite.ctx, SignupInput{Username: "alice2", Email: "ALICE@example.com", Password: "supersecret"})
	suite.Require().ErrorAs(err, &dup)
	suite.Equal("email", dup.Field)
}

func (suite *ServicesTestSuite) TestLogin() {
	u, err := suite.auth.Login(suite.ctx, LoginInput{Username: "alice", Password: "supersecret"})
	suite.Require().NoError(err)
	suite.Equal(suite.alice.ID, u.ID)

	_, err = suite.auth.Login(suite.ctx, LoginInput{Username: "alice", Password: "wrong-password"})
	suite.ErrorIs(err, ErrInvalidCredentials)
	_, err = suite.auth.Login(suite.ctx, LoginInput{Username: "nobody", Password: "supersecret"})
	suite.ErrorIs(err, ErrInvalidCredentials)
}

func (suite *ServicesTestSuite) TestUpdateProfile() {
	company := "Acme"
	password := "another-secret"
	_, err := suite.auth.UpdateProfile(suite.ctx, suite.alice.ID, ProfileInput{Company: &company, NewPassword: &password})
	suite.Require().NoError(err)

	u, err := suite.auth.Login(suite.ctx, LoginInput{Username: "alice", Password: password})
	suite.Require().NoError(err)
	suite.Equal("Acme", u.Company)

	taken := "bob@example.com"
	_, err = suite.auth.UpdateProfile(suite.ctx, suite.alice.ID, ProfileInput{Email: &taken})
	suite.ErrorIs(err, repository.ErrDuplicateKey)
}

func (suite *ServicesTestSuite) TestSeedAdmin() {
	created, err := suite.auth.SeedAdmin(suite.ctx)
	suite.Require().NoError(err)
	suite.True(created)

	created, err = suite.auth.SeedAdmin(suite.ctx)
	suite.Require().NoError(err)
	suite.False(created)

	admin, err := suite.auth.Login(suite.ctx, LoginInput{Username: "admin", Password: "admin"})
	suite.Require().NoError(err)
	suite.True(admin.IsAdmin())
}

func (suite *ServicesTestSuite) TestProjectMembership() {
	p := suite.project("Launch", suite.alice)

	_, err := suite.projects.Get(suite.ctx, p.ID, suite.bob.ID)
	suite.ErrorIs(err, ErrNoProjectAccess)

	p, err = suite.projects.AddMember(suite.ctx, p.ID, suite.alice.ID, "bob")
	suite.Require().NoError(err)
	suite.Equal([]string{suite.bob.ID}, p.MemberIDs)

	_, err = suite.projects.AddMember(suite.ctx, p.ID, suite.alice.ID, "bob")
	suite.ErrorIs(err, ErrAlreadyMember)
	_, err = suite.projects.AddMember(suite.ctx, p.ID, suite.alice.ID, "alice")
	suite.ErrorIs(err, ErrAlreadyMember)
	_, err = suite.projects.AddMember(suite.ctx, p.ID, suite.alice.ID, "ghost")
	suite.ErrorIs(err, repository.ErrNotFound)
	_, err = suite.projects.AddMember(suite.ctx, p.ID, suite.bob.ID, "carol")
	suite.ErrorIs(err, ErrNotProjectOwner)

	detail, err := suite.projects.Get(suite.ctx, p.ID, suite.bob.ID)
	suite.Require().NoError(err)
	suite.Equal("alice", detail.Owner.Username)
	suite.Require().Len(detail.Members, 1)
	suite.Equal("bob", detail.Members[0].Username)

	_, err = suite.projects.RemoveMember(suite.ctx, p.ID, suite.alice.ID, suite.alice.ID)
	suite.ErrorIs(err, ErrOwnerNotRemovable)
	p, err = suite.projects.RemoveMember(suite.ctx, p.ID, suite.alice.ID, suite.bob.ID)
	suite.Require().NoError(err)
	suite.Empty(p.MemberIDs)
}

func (suite *ServicesTestSuite) TestListForUserAndDashboard() {
	owned := suite.project("Owned", suite.alice)
	shared := suite.project("Shared", suite.bob, suite.alice)
	suite.project("Unrelated", suite.carol)

	t := suite.task("Write docs", owned, suite.alice)
	suite.task("Review", owned, suite.alice)
	_, err := suite.tasks.AssignTask(suite.ctx, t.ID, suite.alice.ID, "alice")
	suite.Require().NoError(err)

	ownedList, memberList, err := suite.projects.ListForUser(suite.ctx, suite.alice.ID)
	suite.Require().NoError(err)
	suite.Require().Len(ownedList, 1)
	suite.Equal(owned.ID, ownedList[0].Project.ID)
	suite.Equal(2, ownedList[0].TaskCount)
	suite.Equal(0, ownedList[0].MemberCount)
	suite.Require().Len(memberList, 1)
	suite.Equal(shared.ID, memberList[0].Project.ID)
	suite.Equal("bob", memberList[0].Owner.Username)
	suite.Equal(1, memberList[0].MemberCount)

	dash, err := suite.projects.Dashboard(suite.ctx, suite.alice.ID)
	suite.Require().NoError(err)
	suite.Require().Len(dash.Assigned, 1)
	suite.Equal(t.ID, dash.Assigned[0].ID)
}

func (suite *ServicesTestSuite) TestUpdateProject() {
	p := suite.project("Launch", suite.alice, suite.bob)
	title := "Relaunch"

	_, err := suite.projects.Update(suite.ctx, p.ID, suite.bob.ID, UpdateProjectInput{Title: &title})
	suite.ErrorIs(err, ErrNotProjectOwner)

	empty := "  "
	_, err = suite.projects.Update(suite.ctx, p.ID, suite.alice.ID, UpdateProjectInput{Title: &empty})
	suite.ErrorIs(err, ErrTitleRequired)

	updated, err := suite.projects.Update(suite.ctx, p.ID, suite.alice.ID, UpdateProjectInput{Title: &title})
	suite.Require().NoError(err)
	suite.Equal("Relaunch", updated.Title)
}

func (suite *ServicesTestSuite) TestDeleteProjectCascades() {
	p := suite.project("Launch", suite.alice, suite.bob)
	t := suite.task("Ship", p, suite.bob)
	c, err := suite.tasks.AddComment(suite.ctx, t.ID, suite.bob.ID, "on it")
	suite.Require().NoError(err)
	a, err := suite.tasks.Upload(suite.ctx, t.ID, suite.bob.ID, "plan.txt", strings.NewReader("plan"))
	suite.Require().NoError(err)

	suite.ErrorIs(suite.projects.Delete(suite.ctx, p.ID, suite.bob.ID), ErrNotProjectOwner)
	suite.Require().NoError(suite.projects.Delete(suite.ctx, p.ID, suite.alice.ID))

	_, err = suite.store.Projects.FindByID(suite.ctx, p.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
	_, err = suite.store.Tasks.FindByID(suite.ctx, t.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
	_, err = suite.store.Comments.FindByID(suite.ctx, c.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
	_, err = suite.files.Open(suite.ctx, a.FilePath)
	suite.ErrorIs(err, uploads.ErrNotFound)
}

func (suite *ServicesTestSuite) TestAdminForcesDeleteOfUnreadableTask() {
	p := suite.project("Launch", suite.alice, suite.bob)
	t := suite.task("Ship", p, suite.bob)
	c, err := suite.tasks.AddComment(suite.ctx, t.ID, suite.bob.ID, "left behind")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.blobs.Put(suite.ctx, models.KindTask.Namespace(), t.ID, []byte("{broken")))
	suite.Require().NoError(suite.snapshots.Remove(models.KindTask, t.ID))

	suite.ErrorIs(suite.tasks.DeleteTask(suite.ctx, t.ID, suite.alice.ID), repository.ErrNotFound)
	_, err = suite.store.Comments.FindByID(suite.ctx, c.ID)
	suite.NoError(err, "nothing is removed for a regular user")

	_, err = suite.auth.SeedAdmin(suite.ctx)
	suite.Require().NoError(err)
	admin, err := suite.store.Users.FindByUsername(suite.ctx, constants.AdminUsername)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.tasks.DeleteTask(suite.ctx, t.ID, admin.ID))
	_, err = suite.store.Comments.FindByID(suite.ctx, c.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
	exists, err := suite.blobs.Exists(suite.ctx, models.KindTask.Namespace(), t.ID)
	suite.Require().NoError(err)
	suite.False(exists)
}

func (suite *ServicesTestSuite) TestTaskLifecycle() {
	p := suite.project("Launch", suite.alice, suite.bob)
	due := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	_, err := suite.tasks.CreateTask(suite.ctx, CreateTaskInput{Title: "x", ProjectID: p.ID, CreatorID: suite.carol.ID})
	suite.ErrorIs(err, ErrNoProjectAccess)
	_, err = suite.tasks.CreateTask(suite.ctx, CreateTaskInput{Title: "x", Priority: "urgent", ProjectID: p.ID, CreatorID: suite.bob.ID})
	suite.ErrorIs(err, ErrInvalidPriority)

	t, err := suite.tasks.CreateTask(suite.ctx, CreateTaskInput{
		Title:     "Ship",
		Priority:  models.TaskPriorityHigh,
		DueDate:   &due,
		ProjectID: p.ID,
		CreatorID: suite.bob.ID,
	})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusTodo, t.Status)

	status := models.TaskStatus("blocked")
	_, err = suite.tasks.UpdateTask(suite.ctx, t.ID, suite.alice.ID, UpdateTaskInput{Status: &status})
	suite.ErrorIs(err, ErrInvalidStatus)

	t, err = suite.tasks.UpdateTask(suite.ctx, t.ID, suite.alice.ID, UpdateTaskInput{ClearDueDate: true})
	suite.Require().NoError(err)
	suite.Nil(t.DueDate)

	t, old, err := suite.tasks.ChangeStatus(suite.ctx, t.ID, suite.bob.ID, models.TaskStatusInProgress)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusTodo, old)
	suite.Equal(models.TaskStatusInProgress, t.Status)

	_, err = suite.tasks.AssignTask(suite.ctx, t.ID, suite.alice.ID, "carol")
	suite.ErrorIs(err, ErrAssigneeNotMember)
	t, err = suite.tasks.AssignTask(suite.ctx, t.ID, suite.alice.ID, "bob")
	suite.Require().NoError(err)
	suite.Equal(suite.bob.ID, t.AssigneeID)
	t, err = suite.tasks.AssignTask(suite.ctx, t.ID, suite.alice.ID, "")
	suite.Require().NoError(err)
	suite.False(t.IsAssigned())

	_, err = suite.tasks.GetTask(suite.ctx, t.ID, suite.carol.ID)
	suite.ErrorIs(err, ErrNoProjectAccess)

	suite.Require().NoError(suite.tasks.DeleteTask(suite.ctx, t.ID, suite.bob.ID))
	_, err = suite.tasks.GetTask(suite.ctx, t.ID, suite.bob.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
}

func (suite *ServicesTestSuite) TestCommentsAreOrderedWithAuthors() {
	p := suite.project("Launch", suite.alice, suite.bob)
	t := suite.task("Ship", p, suite.alice)

	_, err := suite.tasks.AddComment(suite.ctx, t.ID, suite.alice.ID, "   ")
	suite.ErrorIs(err, ErrContentRequired)
	_, err = suite.tasks.AddComment(suite.ctx, t.ID, suite.alice.ID, strings.Repeat("x", 501))
	suite.ErrorIs(err, ErrContentTooLong)

	for _, u := range []*models.User{suite.alice, suite.bob, suite.alice} {
		_, err := suite.tasks.AddComment(suite.ctx, t.ID, u.ID, "from "+u.Username)
		suite.Require().NoError(err)
	}

	detail, err := suite.tasks.GetTask(suite.ctx, t.ID, suite.bob.ID)
	suite.Require().NoError(err)
	suite.Require().Len(detail.Comments, 3)
	for i, want := range []string{"alice", "bob", "alice"} {
		suite.Equal(want, detail.Comments[i].Author)
		suite.Equal("from "+want, detail.Comments[i].Comment.Content)
	}
}

func (suite *ServicesTestSuite) TestAttachments() {
	p := suite.project("Launch", suite.alice, suite.bob)
	t := suite.task("Ship", p, suite.alice)

	_, err := suite.tasks.Upload(suite.ctx, t.ID, suite.bob.ID, "", strings.NewReader(""))
	suite.ErrorIs(err, ErrNoFileSelected)
	_, err = suite.tasks.Upload(suite.ctx, t.ID, suite.bob.ID, "run.exe", strings.NewReader("MZ"))
	suite.ErrorIs(err, ErrFileTypeNotAllowed)
	_, err = suite.tasks.Upload(suite.ctx, t.ID, suite.carol.ID, "plan.pdf", strings.NewReader("%PDF"))
	suite.ErrorIs(err, ErrNoProjectAccess)

	a, err := suite.tasks.Upload(suite.ctx, t.ID, suite.bob.ID, "my plan.PDF", strings.NewReader("%PDF"))
	suite.Require().NoError(err)
	suite.True(strings.HasSuffix(a.Filename, "_my_plan.PDF"))

	_, rc, err := suite.tasks.OpenAttachment(suite.ctx, a.ID, suite.alice.ID)
	suite.Require().NoError(err)
	data, err := io.ReadAll(rc)
	suite.Require().NoError(err)
	suite.Require().NoError(rc.Close())
	suite.Equal("%PDF", string(data))

	_, _, err = suite.tasks.OpenAttachment(suite.ctx, a.ID, suite.carol.ID)
	suite.ErrorIs(err, ErrNoProjectAccess)

	_, err = suite.tasks.DeleteAttachment(suite.ctx, a.ID, suite.alice.ID)
	suite.Require().NoError(err)
	_, err = suite.store.Attachments.FindByID(suite.ctx, a.ID)
	suite.ErrorIs(err, repository.ErrNotFound)
	_, err = suite.files.Open(suite.ctx, a.FilePath)
	suite.ErrorIs(err, uploads.ErrNotFound)
}

func (suite *ServicesTestSuite) TestListTasksFilters() {
	p := suite.project("Launch", suite.alice, suite.bob)
	other := suite.project("Other", suite.carol)
	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(72 * time.Hour)

	a, err := suite.tasks.CreateTask(suite.ctx, CreateTaskInput{Title: "later", DueDate: &later, ProjectID: p.ID, CreatorID: suite.alice.ID})
	suite.Require().NoError(err)
	b, err := suite.tasks.CreateTask(suite.ctx, CreateTaskInput{Title: "soon", DueDate: &soon, ProjectID: p.ID, CreatorID: suite.alice.ID})
	suite.Require().NoError(err)
	c := suite.task("undated", p, suite.bob)
	suite.task("hidden", other, suite.carol)

	_, err = suite.tasks.AssignTask(suite.ctx, c.ID, suite.alice.ID, "bob")
	suite.Require().NoError(err)

	all, err := suite.tasks.ListTasks(suite.ctx, ListTasksInput{UserID: suite.bob.ID, SortByDueDate: true})
	suite.Require().NoError(err)
	suite.Equal([]string{b.ID, a.ID, c.ID}, taskIDs(all))

	mine, err := suite.tasks.ListTasks(suite.ctx, ListTasksInput{UserID: suite.bob.ID, AssignedToMe: true})
	suite.Require().NoError(err)
	suite.Equal([]string{c.ID}, taskIDs(mine))

	done := models.TaskStatusDone
	none, err := suite.tasks.ListTasks(suite.ctx, ListTasksInput{UserID: suite.bob.ID, ProjectID: p.ID, Status: &done})
	suite.Require().NoError(err)
	suite.Empty(none)

	_, err = suite.tasks.ListTasks(suite.ctx, ListTasksInput{UserID: suite.bob.ID, ProjectID: other.ID})
	suite.ErrorIs(err, ErrNoProjectAccess)
}

func (suite *ServicesTestSuite) TestUploadsDisabled() {
	p := suite.project("Launch", suite.alice)
	t := suite.task("Ship", p, suite.alice)
	tasks := NewTaskService(suite.store, suite.projects, nil, logging.Discard())

	_, err := tasks.Upload(suite.ctx, t.ID, suite.alice.ID, "a.txt", strings.NewReader("x"))
	suite.True(errors.Is(err, ErrUploadsNotAvailable))
}

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}
