package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"learnpath/internal/auth"
	"learnpath/internal/cache"
	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const oauthStateTTL = 10 * time.Minute

// Profile is the identity an OAuth provider reports for the signed in account.
type Profile struct {
	UID   string
	Email string
	Name  string
}

// Provider pairs an oauth2 client configuration with a profile lookup.
type Provider struct {
	Config  *oauth2.Config
	Profile func(ctx context.Context, client *http.Client) (Profile, error)
}

// GitHubProvider signs users in with GitHub.
func GitHubProvider(clientID, clientSecret, redirectURL string) Provider {
	return Provider{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
		},
		Profile: githubProfile("https://api.github.com"),
	}
}

// GoogleProvider signs users in with Google.
func GoogleProvider(clientID, clientSecret, redirectURL string) Provider {
	return Provider{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		Profile: googleProfile("https://openidconnect.googleapis.com/v1/userinfo"),
	}
}

// OAuthService implements sign in through third party providers.
type OAuthService interface {
	Providers() []string
	AuthCodeURL(ctx context.Context, provider string) (string, error)
	Callback(ctx context.Context, provider, state, code, ip string) (*domain.User, error)
}

type OAuthConfig struct {
	Staging    bool
	BcryptCost int
	Logger     *logrus.Logger
}

type oauthService struct {
	providers map[string]Provider
	users     repository.UserRepository
	links     repository.UserProviderRepository
	cache     cache.Cache
	hooks     *afterCreate
	cfg       OAuthConfig
}

func NewOAuthService(cfg OAuthConfig, providers map[string]Provider, users repository.UserRepository, links repository.UserProviderRepository, catalog repository.CatalogRepository, mail Mailer, c cache.Cache) OAuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &oauthService{
		providers: providers,
		users:     users,
		links:     links,
		cache:     c,
		cfg:       cfg,
		hooks: &afterCreate{
			users:   users,
			catalog: catalog,
			mail:    mail,
			staging: cfg.Staging,
			logger:  cfg.Logger,
		},
	}
}

func (s *oauthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stateKey(state string) string {
	return "oauth:state:" + state
}

func (s *oauthService) AuthCodeURL(ctx context.Context, provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	state := uuid.NewString()
	if err := s.cache.Set(ctx, stateKey(state), []byte(provider), oauthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return p.Config.AuthCodeURL(state), nil
}

func (s *oauthService) Callback(ctx context.Context, provider, state, code, ip string) (*domain.User, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if state == "" {
		return nil, ErrInvalidState
	}
	stored, err := s.cache.Take(ctx, stateKey(state))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	if string(stored) != provider {
		return nil, ErrInvalidState
	}

	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange %s code: %w", provider, err)
	}
	profile, err := p.Profile(ctx, p.Config.Client(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("fetch %s profile: %w", provider, err)
	}
	if profile.UID == "" {
		return nil, fmt.Errorf("%s profile has no id", provider)
	}

	user, err := s.resolve(ctx, provider, profile)
	if err != nil {
		return nil, err
	}
	if !user.ActiveForAuthentication() {
		return nil, ErrBanned
	}

	user.TrackSignIn(time.Now().UTC(), ip)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("track sign in: %w", err)
	}
	if !user.ActiveForAuthentication() {
		return nil, ErrBanned
	}
	return user, nil
}

func (s *oauthService) resolve(ctx context.Context, provider string, profile Profile) (*domain.User, error) {
	link, err := s.links.Find(ctx, provider, profile.UID)
	if err == nil {
		return s.users.GetByID(ctx, link.UserID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, fmt.Errorf("%s did not return an email address", provider)
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.createUser(ctx, email, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if _, err := s.links.Create(ctx, &domain.UserProvider{
		UserID:   user.ID,
		Provider: provider,
		UID:      profile.UID,
	}); err != nil {
		return nil, err
	}
	s.cfg.Logger.WithFields(logrus.Fields{"user_id": user.ID, "provider": provider}).Info("oauth identity linked")
	return user, nil
}

func (s *oauthService) createUser(ctx context.Context, email string, profile Profile) (*domain.User, error) {
	password, err := randomToken()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		Username:     oauthUsername(profile, email),
		PasswordHash: string(hash),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.hooks.run(ctx, user)
	return user, nil
}

// oauthUsername picks the display name, falling back to the email local part.
func oauthUsername(profile Profile, email string) string {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	runes := []rune(name)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	if len(runes) < 2 {
		return "learner-" + profile.UID
	}
	return string(runes)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func githubProfile(apiBase string) func(context.Context, *http.Client) (Profile, error) {
	return func(ctx context.Context, client *http.Client) (Profile, error) {
		var u struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := getJSON(ctx, client, apiBase+"/user", &u); err != nil {
			return Profile{}, err
		}
		profile := Profile{UID: strconv.FormatInt(u.ID, 10), Email: u.Email, Name: u.Name}
		if profile.Name == "" {
			profile.Name = u.Login
		}
		if profile.Email != "" {
			return profile, nil
		}

		// private emails are only listed by the emails endpoint
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, apiBase+"/user/emails", &emails); err != nil {
			return Profile{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Email = e.Email
				break
			}
		}
		return profile, nil
	}
}

func googleProfile(userInfoURL string) func(context.Context, *http.Client) (Profile, error) {
	return func(ctx context.Context, client *http.Client) (Profile, error) {
		var u struct {
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
		}
		if err := getJSON(ctx, client, userInfoURL, &u); err != nil {
			return Profile{}, err
		}
		profile := Profile{UID: u.Sub, Name: u.Name}
		if u.EmailVerified {
			profile.Email = u.Email
		}
		return profile, nil
	}
}
