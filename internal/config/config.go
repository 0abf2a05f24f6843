package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr    string
		SiteURL string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret        string
		TokenTTLMinutes  int
		RememberTTLHours int
		BcryptCost       int
		AdminEmails      []string
	}
	OAuth struct {
		GitHub OAuthClient
		Google OAuthClient
	}
	Mail struct {
		Host          string
		Port          int
		Username      string
		Password      string
		TLS           bool
		From          string
		Staging       bool
		MaxConcurrent int
		MaxAttempts   int
	}
	Redis struct {
		Addr      string
		Password  string
		DB        int
		KeyPrefix string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Catalog struct {
		SeedFile string
	}
	Log struct {
		Level string
	}
}

// OAuthClient is one provider's credentials. A provider without a client id is disabled.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("LEARNPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// every key needs a default so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.siteurl", "http://localhost:8080")
	v.SetDefault("database.path", "data/learnpath.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 24*60)
	v.SetDefault("auth.rememberttlhours", 14*24)
	v.SetDefault("auth.bcryptcost", 0)
	v.SetDefault("auth.adminemails", []string{})
	for _, p := range []string{"github", "google"} {
		v.SetDefault("oauth."+p+".clientid", "")
		v.SetDefault("oauth."+p+".clientsecret", "")
		v.SetDefault("oauth."+p+".redirecturl", "")
	}
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.from", "Learnpath <noreply@localhost>")
	v.SetDefault("mail.staging", false)
	v.SetDefault("mail.maxconcurrent", 3)
	v.SetDefault("mail.maxattempts", 3)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyprefix", "learnpath:")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "avatars")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("catalog.seedfile", "")
	v.SetDefault("log.level", "info")
}

// loadDotEnv preloads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
