package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"learnpath/internal/domain"
	"learnpath/internal/mailer"
	"learnpath/internal/repository/sqlite"
	"learnpath/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := sqlite.NewStore(db)
	require.NoError(t, store.Init(context.Background()))
	return store
}

// newOutbox records deliveries without dispatching them.
func newOutbox(t *testing.T, store *sqlite.Store) *mailer.Outbox {
	t.Helper()
	tmpl, err := mailer.NewTemplates()
	require.NoError(t, err)
	return mailer.NewOutbox(store.Deliveries, nil, tmpl, "https://learn.example.com", quietLogger())
}

type fixture struct {
	store   *sqlite.Store
	storage *memStorage
	users   UserService
}

func newFixture(t *testing.T, staging bool) *fixture {
	t.Helper()
	store := newTestStore(t)
	objects := newMemStorage()
	users := NewUserService(UserConfig{
		Staging:    staging,
		BcryptCost: bcrypt.MinCost,
		Logger:     quietLogger(),
	}, store.Users, store.Catalog, newOutbox(t, store), objects)
	return &fixture{store: store, storage: objects, users: users}
}

func (f *fixture) register(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: strings.Split(email, "@")[0],
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

type catalogFixture struct {
	path    *domain.Path
	course  *domain.Course
	lessons []*domain.Lesson
}

// seedCatalog creates a default path with one course of three lessons, the last one a project.
func seedCatalog(t *testing.T, store *sqlite.Store) catalogFixture {
	t.Helper()
	ctx := context.Background()
	path := &domain.Path{Title: "Foundations", DefaultPath: true}
	_, err := store.Catalog.CreatePath(ctx, path)
	require.NoError(t, err)
	course := &domain.Course{PathID: path.ID, Title: "Basics"}
	_, err = store.Catalog.CreateCourse(ctx, course)
	require.NoError(t, err)

	fx := catalogFixture{path: path, course: course}
	for i, title := range []string{"Intro", "Setup", "Recipes"} {
		lesson := &domain.Lesson{CourseID: course.ID, Title: title, Position: i, IsProject: title == "Recipes"}
		_, err := store.Catalog.CreateLesson(ctx, lesson)
		require.NoError(t, err)
		fx.lessons = append(fx.lessons, lesson)
	}
	return fx
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string]string)}
}

func (m *memStorage) Upload(_ context.Context, key string, body io.Reader, _ storage.UploadOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(data)
	return "s3://test/" + key, nil
}

func (m *memStorage) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *memStorage) GetObjectURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func (m *memStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
