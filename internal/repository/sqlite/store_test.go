package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func seedLesson(t *testing.T, s *Store) (*domain.Path, *domain.Course, *domain.Lesson) {
	t.Helper()
	ctx := context.Background()
	path := &domain.Path{Title: "Foundations", DefaultPath: true}
	_, err := s.Catalog.CreatePath(ctx, path)
	require.NoError(t, err)
	course := &domain.Course{PathID: path.ID, Title: "Basics"}
	_, err = s.Catalog.CreateCourse(ctx, course)
	require.NoError(t, err)
	lesson := &domain.Lesson{CourseID: course.ID, Title: "Intro", IsProject: true}
	_, err = s.Catalog.CreateLesson(ctx, lesson)
	require.NoError(t, err)
	return path, course, lesson
}

func seedUser(t *testing.T, s *Store, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Username: "learner", PasswordHash: "x"}
	_, err := s.Users.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func TestUserRepository_EmailUniqueIgnoresCase(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "ada@example.com")

	_, err := s.Users.Create(context.Background(), &domain.User{Email: "ADA@example.com", Username: "other", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserRepository_RoundTripsTrackableColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ada@example.com")

	u.TrackSignIn(time.Now().UTC(), "10.0.0.1")
	require.NoError(t, s.Users.Update(ctx, u))

	got, err := s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SignInCount)
	assert.Equal(t, "10.0.0.1", got.CurrentSignInIP)
	require.NotNil(t, got.CurrentSignInAt)
	assert.Nil(t, got.PathID)
}

func TestUserRepository_UpdateKeepsBanAndAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ada@example.com")

	stale, err := s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, s.Users.SetBanned(ctx, u.ID, true))
	require.NoError(t, s.Users.SetAdmin(ctx, u.ID, true))

	stale.TrackSignIn(time.Now().UTC(), "10.0.0.2")
	require.NoError(t, s.Users.Update(ctx, stale))
	assert.True(t, stale.Banned)
	assert.True(t, stale.Admin)

	got, err := s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Banned)
	assert.True(t, got.Admin)
	assert.Equal(t, 1, got.SignInCount)

	require.NoError(t, s.Users.SetAdmin(ctx, u.ID, false))
	got, err = s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Admin)
	assert.ErrorIs(t, s.Users.SetAdmin(ctx, 999, true), repository.ErrNotFound)
}

func TestUserRepository_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Users.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path, course, lesson := seedLesson(t, s)
	u := seedUser(t, s, "ada@example.com")
	other := seedUser(t, s, "bob@example.com")

	_, err := s.Completions.Create(ctx, &domain.LessonCompletion{StudentID: u.ID, LessonID: lesson.ID, CourseID: course.ID, PathID: path.ID})
	require.NoError(t, err)
	sub := &domain.ProjectSubmission{UserID: u.ID, LessonID: lesson.ID, RepoURL: "https://github.com/ada/x", IsPublic: true}
	_, err = s.Submissions.Create(ctx, sub)
	require.NoError(t, err)
	_, err = s.Providers.Create(ctx, &domain.UserProvider{UserID: u.ID, Provider: "github", UID: "1"})
	require.NoError(t, err)

	otherSub := &domain.ProjectSubmission{UserID: other.ID, LessonID: lesson.ID, RepoURL: "https://github.com/bob/x", IsPublic: true}
	_, err = s.Submissions.Create(ctx, otherSub)
	require.NoError(t, err)
	_, err = s.Flags.Create(ctx, &domain.Flag{FlaggerID: u.ID, ProjectSubmissionID: &otherSub.ID, Reason: domain.FlagReasonSpam})
	require.NoError(t, err)
	_, err = s.Votes.Create(ctx, &domain.Vote{VoterID: u.ID, VotableType: domain.VotableProjectSubmission, VotableID: otherSub.ID})
	require.NoError(t, err)

	require.NoError(t, s.Users.Delete(ctx, u.ID))

	ids, err := s.Completions.CompletedLessonIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	subs, err := s.Submissions.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	providers, err := s.Providers.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, providers)

	flags, err := s.Flags.ListByFlagger(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, flags)

	likes, err := s.Votes.Count(ctx, domain.VotableProjectSubmission, otherSub.ID)
	require.NoError(t, err)
	assert.Zero(t, likes)

	_, err = s.Submissions.Get(ctx, otherSub.ID)
	assert.NoError(t, err)
}

func TestCatalogRepository_SingleDefaultPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLesson(t, s)

	_, err := s.Catalog.CreatePath(ctx, &domain.Path{Title: "Full Stack", DefaultPath: true})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	def, err := s.Catalog.DefaultPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Foundations", def.Title)
}

func TestCatalogRepository_ListLessonsOrdersByPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, course, first := seedLesson(t, s)

	second := &domain.Lesson{CourseID: course.ID, Title: "Setup", Position: -1}
	_, err := s.Catalog.CreateLesson(ctx, second)
	require.NoError(t, err)

	lessons, err := s.Catalog.ListLessons(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, second.ID, lessons[0].ID)
	assert.Equal(t, first.ID, lessons[1].ID)
	assert.True(t, lessons[1].IsProject)
}

func TestLessonCompletionRepository_LatestUsesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path, course, lesson := seedLesson(t, s)
	later := &domain.Lesson{CourseID: course.ID, Title: "Later"}
	_, err := s.Catalog.CreateLesson(ctx, later)
	require.NoError(t, err)
	u := seedUser(t, s, "ada@example.com")

	_, err = s.Completions.Latest(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err = s.Completions.Create(ctx, &domain.LessonCompletion{StudentID: u.ID, LessonID: later.ID, CourseID: course.ID, PathID: path.ID, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Completions.Create(ctx, &domain.LessonCompletion{StudentID: u.ID, LessonID: lesson.ID, CourseID: course.ID, PathID: path.ID, CreatedAt: base})
	require.NoError(t, err)

	latest, err := s.Completions.Latest(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, later.ID, latest.LessonID)

	_, err = s.Completions.Create(ctx, &domain.LessonCompletion{StudentID: u.ID, LessonID: lesson.ID, CourseID: course.ID, PathID: path.ID})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestProjectSubmissionRepository_LikesAndVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, lesson := seedLesson(t, s)
	author := seedUser(t, s, "ada@example.com")
	fan := seedUser(t, s, "bob@example.com")

	public := &domain.ProjectSubmission{UserID: author.ID, LessonID: lesson.ID, RepoURL: "https://github.com/ada/x", IsPublic: true}
	_, err := s.Submissions.Create(ctx, public)
	require.NoError(t, err)
	hidden := &domain.ProjectSubmission{UserID: fan.ID, LessonID: lesson.ID, RepoURL: "https://github.com/bob/x"}
	_, err = s.Submissions.Create(ctx, hidden)
	require.NoError(t, err)

	_, err = s.Votes.Create(ctx, &domain.Vote{VoterID: fan.ID, VotableType: domain.VotableProjectSubmission, VotableID: public.ID})
	require.NoError(t, err)

	list, err := s.Submissions.ListPublicByLesson(ctx, lesson.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, public.ID, list[0].ID)
	assert.Equal(t, 1, list[0].Likes)

	require.NoError(t, s.Submissions.SetBanned(ctx, public.ID, true))
	list, err = s.Submissions.ListPublicByLesson(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeliveryRepository_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "ada@example.com")

	d := &domain.MailDelivery{UserID: &u.ID, Kind: domain.DeliveryKindWelcome, Recipient: u.Email, Subject: "hi", Body: "<p>hi</p>"}
	_, err := s.Deliveries.Create(ctx, d)
	require.NoError(t, err)

	pending, err := s.Deliveries.ListByStatuses(ctx, domain.DeliveryStatusPending, domain.DeliveryStatusSending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	n, err := s.Deliveries.IncrementAttempts(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Deliveries.MarkSent(ctx, d.ID))
	got, err := s.Deliveries.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusSent, got.Status)
	assert.NotNil(t, got.SentAt)
}
