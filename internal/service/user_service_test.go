package service

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

func TestRegister_RunsHooksInOrder(t *testing.T) {
	f := newFixture(t, false)
	cat := seedCatalog(t, f.store)

	u := f.register(t, " Ada@Example.com ")
	assert.Equal(t, "ada@example.com", u.Email)
	require.NotNil(t, u.PathID)
	assert.Equal(t, cat.path.ID, *u.PathID)

	stored, err := f.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PathID)

	deliveries, err := f.store.Deliveries.ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.DeliveryKindWelcome, deliveries[0].Kind)
	assert.Contains(t, deliveries[0].Body, "Foundations")
}

func TestRegister_WithoutDefaultPath(t *testing.T) {
	f := newFixture(t, false)
	u := f.register(t, "ada@example.com")
	assert.Nil(t, u.PathID)
}

func TestRegister_StagingSkipsWelcome(t *testing.T) {
	f := newFixture(t, true)
	seedCatalog(t, f.store)

	u := f.register(t, "ada@example.com")
	assert.NotNil(t, u.PathID)

	deliveries, err := f.store.Deliveries.ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.users.Register(context.Background(), RegisterInput{
		Email:        "not-an-email",
		Username:     "a",
		Password:     "123",
		LearningGoal: strings.Repeat("x", 1701),
	})
	verr, ok := domain.AsValidationErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	assert.Equal(t, []string{"is invalid"}, verr["email"])
	assert.Equal(t, []string{"is too short (minimum is 2 characters)"}, verr["username"])
	assert.Equal(t, []string{"is too long (maximum is 1700 characters)"}, verr["learning_goal"])
	assert.Equal(t, []string{"is too short (minimum is 6 characters)"}, verr["password"])
}

func TestRegister_FieldBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		username string
		goal     string
		password string
		field    string
		message  string
	}{
		{name: "username of 2", username: "ab"},
		{name: "username of 100", username: strings.Repeat("a", 100)},
		{name: "username of 101", username: strings.Repeat("a", 101), field: "username", message: "is too long (maximum is 100 characters)"},
		{name: "multibyte username of 2 runes", username: "日本"},
		{name: "multibyte username of 100 runes", username: strings.Repeat("ж", 100)},
		{name: "multibyte username of 101 runes", username: strings.Repeat("ж", 101), field: "username", message: "is too long (maximum is 100 characters)"},
		{name: "single multibyte rune", username: "日", field: "username", message: "is too short (minimum is 2 characters)"},
		{name: "learning goal of 1700", goal: strings.Repeat("x", 1700)},
		{name: "learning goal of 1701", goal: strings.Repeat("x", 1701), field: "learning_goal", message: "is too long (maximum is 1700 characters)"},
		{name: "password of 6", password: "abcdef"},
		{name: "password of 72", password: strings.Repeat("p", 72)},
		{name: "password of 73", password: strings.Repeat("p", 73)},
		{name: "password of 128", password: strings.Repeat("p", 128)},
		{name: "password of 129", password: strings.Repeat("p", 129), field: "password", message: "is too long (maximum is 128 characters)"},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true)
			in := RegisterInput{
				Email:        "learner" + strconv.Itoa(i) + "@example.com",
				Username:     tc.username,
				Password:     tc.password,
				LearningGoal: tc.goal,
			}
			if in.Username == "" {
				in.Username = "learner"
			}
			if in.Password == "" {
				in.Password = "secret123"
			}

			u, err := f.users.Register(context.Background(), in)
			if tc.field == "" {
				require.NoError(t, err)
				_, err = f.users.Authenticate(context.Background(), Credentials{Email: in.Email, Password: in.Password})
				assert.NoError(t, err)
				assert.Equal(t, in.Username, u.Username)
				return
			}
			verr, ok := domain.AsValidationErrors(err)
			require.True(t, ok, "expected validation errors, got %v", err)
			assert.Equal(t, []string{tc.message}, verr[tc.field])
		})
	}
}

func TestRegister_LongPasswordsStayDistinct(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	prefix := strings.Repeat("p", 72)

	_, err := f.users.Register(ctx, RegisterInput{Email: "ada@example.com", Username: "ada", Password: prefix + "-tail"})
	require.NoError(t, err)

	_, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: prefix})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: prefix + "-tail"})
	assert.NoError(t, err)
}

func TestUpdateProfile_KeepsConcurrentBan(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	require.NoError(t, f.store.Users.SetBanned(ctx, u.ID, true))
	goal := "ship a project"
	got, err := f.users.UpdateProfile(ctx, u.ID, ProfileUpdate{LearningGoal: &goal})
	require.NoError(t, err)
	assert.True(t, got.Banned)

	stored, err := f.store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.Banned)
	assert.Equal(t, goal, stored.LearningGoal)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "ada@example.com")

	_, err := f.users.Register(context.Background(), RegisterInput{Email: "ADA@example.com", Username: "ada2", Password: "secret123"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	_, err := f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := f.users.Authenticate(ctx, Credentials{Email: "Ada@example.com", Password: "secret123", Remember: true, IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, 1, got.SignInCount)
	assert.Equal(t, "10.0.0.1", got.CurrentSignInIP)
	assert.NotNil(t, got.RememberCreatedAt)

	got, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "secret123", IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.SignInCount)
	assert.Equal(t, "10.0.0.1", got.LastSignInIP)
	assert.Equal(t, "10.0.0.2", got.CurrentSignInIP)
}

func TestAuthenticate_BannedUser(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	banned, err := f.users.SetBanned(ctx, u.ID, true)
	require.NoError(t, err)
	assert.False(t, banned.ActiveForAuthentication())
	assert.Equal(t, "banned", banned.InactiveMessage())

	_, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrBanned)

	_, err = f.users.SetBanned(ctx, u.ID, false)
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "secret123"})
	assert.NoError(t, err)
}

func TestUpdateProfileAndChangePassword(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")
	f.register(t, "bob@example.com")

	goal := "Ship a rails app"
	name := "Ada L"
	got, err := f.users.UpdateProfile(ctx, u.ID, ProfileUpdate{Username: &name, LearningGoal: &goal})
	require.NoError(t, err)
	assert.Equal(t, "Ada L", got.Username)
	assert.Equal(t, goal, got.LearningGoal)

	taken := "bob@example.com"
	_, err = f.users.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	err = f.users.ChangePassword(ctx, u.ID, "nope", "another-secret")
	_, ok := domain.AsValidationErrors(err)
	assert.True(t, ok)

	require.NoError(t, f.users.ChangePassword(ctx, u.ID, "secret123", "another-secret"))
	_, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "another-secret"})
	assert.NoError(t, err)
}

var tokenPattern = regexp.MustCompile(`reset_password_token=([0-9a-f]+)`)

func resetMailBody(t *testing.T, f *fixture, userID int64) string {
	t.Helper()
	deliveries, err := f.store.Deliveries.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	for _, d := range deliveries {
		if d.Kind == domain.DeliveryKindResetPassword {
			return d.Body
		}
	}
	t.Fatal("no reset password delivery queued")
	return ""
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	require.NoError(t, f.users.RequestPasswordReset(ctx, "unknown@example.com"))
	require.NoError(t, f.users.RequestPasswordReset(ctx, "ADA@example.com"))

	body := resetMailBody(t, f, u.ID)
	assert.Contains(t, body, "6 hours")

	m := tokenPattern.FindStringSubmatch(body)
	require.Len(t, m, 2)
	token, err := url.QueryUnescape(m[1])
	require.NoError(t, err)

	stored, err := f.store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored.ResetPasswordTokenDigest)

	_, err = f.users.ResetPassword(ctx, "bogus", "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	_, err = f.users.ResetPassword(ctx, token, "brand-new-pass")
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "brand-new-pass"})
	assert.NoError(t, err)

	_, err = f.users.ResetPassword(ctx, token, "again-new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	svc := f.users.(*userService)
	svc.now = func() time.Time { return time.Now().UTC().Add(-7 * time.Hour) }
	require.NoError(t, f.users.RequestPasswordReset(ctx, "ada@example.com"))
	svc.now = func() time.Time { return time.Now().UTC() }

	m := tokenPattern.FindStringSubmatch(resetMailBody(t, f, u.ID))
	require.Len(t, m, 2)

	_, err := f.users.ResetPassword(ctx, m[1], "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

const (
	pngHeader  = "\x89PNG\r\n\x1a\n"
	jpegHeader = "\xff\xd8\xff\xe0"
)

func TestSetAvatarAndDelete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	_, err := f.users.SetAvatar(ctx, u.ID, strings.NewReader("plain text pretending to be a png"))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	got, err := f.users.SetAvatar(ctx, u.ID, strings.NewReader(pngHeader+"first"))
	require.NoError(t, err)
	assert.Regexp(t, `^avatars/\d+/[0-9a-f-]{36}\.png$`, got.AvatarKey)
	assert.Equal(t, pngHeader+"first", f.storage.objects[got.AvatarKey])

	got, err = f.users.SetAvatar(ctx, u.ID, strings.NewReader(jpegHeader+"second"))
	require.NoError(t, err)
	assert.Regexp(t, `\.jpg$`, got.AvatarKey)
	assert.Equal(t, []string{got.AvatarKey}, f.storage.keys())

	link, err := f.users.AvatarURL(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+got.AvatarKey, link)

	require.NoError(t, f.users.Delete(ctx, u.ID))
	assert.Empty(t, f.storage.keys())
	_, err = f.users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetAvatar_StorageDisabled(t *testing.T) {
	store := newTestStore(t)
	users := NewUserService(UserConfig{Logger: quietLogger(), BcryptCost: 4}, store.Users, store.Catalog, nil, nil)
	u, err := users.Register(context.Background(), RegisterInput{Email: "ada@example.com", Username: "ada", Password: "secret123"})
	require.NoError(t, err)

	_, err = users.SetAvatar(context.Background(), u.ID, strings.NewReader(pngHeader))
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestDelete_CancelsPendingMail(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "ada@example.com")

	deliveries, err := f.store.Deliveries.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Equal(t, domain.DeliveryStatusPending, deliveries[0].Status)

	require.NoError(t, f.users.Delete(ctx, u.ID))

	got, err := f.store.Deliveries.Get(ctx, deliveries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCancelled, got.Status)
	assert.Nil(t, got.UserID)
}
