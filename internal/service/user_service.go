package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"learnpath/internal/auth"
	"learnpath/internal/domain"
	"learnpath/internal/repository"
	"learnpath/internal/storage"
)

// DefaultResetPasswordWithin is how long a reset password token stays valid.
const DefaultResetPasswordWithin = 6 * time.Hour

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, in Credentials) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
	Delete(ctx context.Context, id int64) error
	SetBanned(ctx context.Context, id int64, banned bool) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) (*domain.User, error)
	SetAvatar(ctx context.Context, id int64, body io.Reader) (*domain.User, error)
	AvatarURL(ctx context.Context, user *domain.User) (string, error)
}

type RegisterInput struct {
	Email        string
	Username     string
	Password     string
	LearningGoal string
}

type Credentials struct {
	Email    string
	Password string
	Remember bool
	IP       string
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	Email        *string
	Username     *string
	LearningGoal *string
}

type UserConfig struct {
	Staging             bool
	ResetPasswordWithin time.Duration
	BcryptCost          int
	AvatarPrefix        string
	Logger              *logrus.Logger
}

type userService struct {
	users   repository.UserRepository
	storage storage.Service
	hooks   *afterCreate
	mail    Mailer
	cfg     UserConfig
	now     func() time.Time
}

func NewUserService(cfg UserConfig, users repository.UserRepository, catalog repository.CatalogRepository, mail Mailer, store storage.Service) UserService {
	if cfg.ResetPasswordWithin <= 0 {
		cfg.ResetPasswordWithin = DefaultResetPasswordWithin
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.AvatarPrefix == "" {
		cfg.AvatarPrefix = "avatars"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &userService{
		users:   users,
		storage: store,
		mail:    mail,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		hooks: &afterCreate{
			users:   users,
			catalog: catalog,
			mail:    mail,
			staging: cfg.Staging,
			logger:  cfg.Logger,
		},
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user := &domain.User{
		Email:        normalizeEmail(in.Email),
		Username:     strings.TrimSpace(in.Username),
		LearningGoal: strings.TrimSpace(in.LearningGoal),
	}
	if err := collectErrors(user.Validate(), domain.ValidatePassword(in.Password)); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.hooks.run(ctx, user)
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, in Credentials) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.ActiveForAuthentication() {
		return nil, ErrBanned
	}

	now := s.now()
	user.TrackSignIn(now, in.IP)
	if in.Remember {
		user.RememberCreatedAt = &now
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("track sign in: %w", err)
	}
	if !user.ActiveForAuthentication() {
		return nil, ErrBanned
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		user.Email = normalizeEmail(*in.Email)
	}
	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.LearningGoal != nil {
		user.LearningGoal = strings.TrimSpace(*in.LearningGoal)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		errs := domain.ValidationErrors{}
		errs.Add("current_password", "is invalid")
		return errs
	}
	if err := domain.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.RememberCreatedAt = nil
	return s.users.Update(ctx, user)
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.mail != nil {
		if _, err := s.mail.CancelForUser(ctx, id); err != nil {
			s.cfg.Logger.WithField("user_id", id).Warnf("cancel pending mail: %v", err)
		}
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	if user.AvatarKey != "" && s.storage != nil {
		if err := s.storage.DeletePrefix(ctx, s.avatarDir(id)); err != nil {
			s.cfg.Logger.WithField("user_id", id).Warnf("delete avatar: %v", err)
		}
	}
	return nil
}

func (s *userService) SetBanned(ctx context.Context, id int64, banned bool) (*domain.User, error) {
	if err := s.users.SetBanned(ctx, id, banned); err != nil {
		return nil, err
	}
	s.cfg.Logger.WithField("user_id", id).Infof("banned set to %t", banned)
	return s.users.GetByID(ctx, id)
}

func (s *userService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	now := s.now()
	user.ResetPasswordTokenDigest = digestToken(token)
	user.ResetPasswordSentAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if s.mail == nil {
		return nil
	}
	_, err = s.mail.QueueResetPassword(ctx, user, token, humanDuration(s.cfg.ResetPasswordWithin))
	return err
}

func (s *userService) ResetPassword(ctx context.Context, token, password string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidResetToken
	}

	user, err := s.users.GetByResetDigest(ctx, digestToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	if user.ResetPasswordSentAt == nil || s.now().Sub(*user.ResetPasswordSentAt) > s.cfg.ResetPasswordWithin {
		return nil, ErrInvalidResetToken
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.ResetPasswordTokenDigest = ""
	user.ResetPasswordSentAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// sniffLimit matches the number of bytes mimetype inspects.
const sniffLimit = 3072

// SetAvatar stores an image whose type is detected from its content.
func (s *userService) SetAvatar(ctx context.Context, id int64, body io.Reader) (*domain.User, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	head := make([]byte, sniffLimit)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedMedia
	}
	body = io.MultiReader(bytes.NewReader(head), body)

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dir := s.avatarDir(id)
	if user.AvatarKey != "" {
		if err := s.storage.DeletePrefix(ctx, dir); err != nil {
			return nil, fmt.Errorf("remove previous avatar: %w", err)
		}
	}

	key := path.Join(dir, uuid.NewString()+ext)
	if _, err := s.storage.Upload(ctx, key, body, storage.UploadOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000",
	}); err != nil {
		return nil, err
	}

	user.AvatarKey = key
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) AvatarURL(ctx context.Context, user *domain.User) (string, error) {
	if user.AvatarKey == "" || s.storage == nil {
		return "", nil
	}
	return s.storage.GetObjectURL(ctx, user.AvatarKey, time.Hour)
}

func (s *userService) avatarDir(id int64) string {
	return path.Join(s.cfg.AvatarPrefix, strconv.FormatInt(id, 10)) + "/"
}

func (s *userService) hashPassword(password string) (string, error) {
	return auth.HashPassword(password, s.cfg.BcryptCost)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

// collectErrors merges field errors from several validations.
func collectErrors(errs ...error) error {
	out := domain.ValidationErrors{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		verr, ok := domain.AsValidationErrors(err)
		if !ok {
			return err
		}
		for field, msgs := range verr {
			for _, msg := range msgs {
				out.Add(field, msg)
			}
		}
	}
	return out.Err()
}
