package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
)

// Remote backends
const (
	BackendMemory = "memory"
	BackendHTTP   = "http"
)

// Config holds all configuration for the application
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        string `mapstructure:"PORT"`
	GRPCPort    string `mapstructure:"GRPC_PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Remote services
	RemoteBackend string `mapstructure:"REMOTE_BACKEND"`
	TeamCoachURL  string `mapstructure:"TEAM_COACH_URL"`
	TeamsURL      string `mapstructure:"TEAMS_URL"`
	PokemonURL    string `mapstructure:"POKEMON_URL"`

	// Client credentials for the remote services
	RemoteClientID     string `mapstructure:"REMOTE_CLIENT_ID"`
	RemoteClientSecret string `mapstructure:"REMOTE_CLIENT_SECRET"`
	RemoteTokenURL     string `mapstructure:"REMOTE_TOKEN_URL"`
	RemoteScopes       string `mapstructure:"REMOTE_SCOPES"`

	// NATS
	NATSURL     string `mapstructure:"NATS_URL"`
	NATSSubject string `mapstructure:"NATS_SUBJECT"`

	// Screens
	DefaultCoachID     int `mapstructure:"DEFAULT_COACH_ID"`
	FetchConcurrency   int `mapstructure:"FETCH_CONCURRENCY"`
	SessionIdleMinutes int `mapstructure:"SESSION_IDLE_MINUTES"`
}

// Load reads an optional .env file (or the given files), then the
// environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && (len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist)) {
		return nil, &apperrors.ConfigurationError{Message: fmt.Sprintf("error loading env file: %v", err)}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	// Development talks to the in-memory services unless told otherwise
	if env := v.GetString("ENVIRONMENT"); env == "" || env == "development" {
		v.SetDefault("REMOTE_BACKEND", BackendMemory)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &apperrors.ConfigurationError{Message: fmt.Sprintf("error unmarshaling config: %v", err)}
	}

	config.RemoteBackend = strings.ToLower(strings.TrimSpace(config.RemoteBackend))

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("LOG_LEVEL", "info")

	// Remote defaults
	v.SetDefault("REMOTE_BACKEND", BackendHTTP)
	v.SetDefault("TEAM_COACH_URL", "")
	v.SetDefault("TEAMS_URL", "")
	v.SetDefault("POKEMON_URL", "")
	v.SetDefault("REMOTE_CLIENT_ID", "")
	v.SetDefault("REMOTE_CLIENT_SECRET", "")
	v.SetDefault("REMOTE_TOKEN_URL", "")
	v.SetDefault("REMOTE_SCOPES", "")

	// NATS defaults
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_SUBJECT", "pokemon.teams.events")

	// Screen defaults
	v.SetDefault("DEFAULT_COACH_ID", 1)
	v.SetDefault("FETCH_CONCURRENCY", 4)
	v.SetDefault("SESSION_IDLE_MINUTES", 30)
}

func validate(config *Config) error {
	switch config.RemoteBackend {
	case BackendMemory:
	case BackendHTTP:
		for name, raw := range map[string]string{
			"TEAM_COACH_URL": config.TeamCoachURL,
			"TEAMS_URL":      config.TeamsURL,
			"POKEMON_URL":    config.PokemonURL,
		} {
			if err := requireURL(name, raw); err != nil {
				return err
			}
		}
		if config.RemoteClientID != "" {
			if err := requireURL("REMOTE_TOKEN_URL", config.RemoteTokenURL); err != nil {
				return err
			}
		}
	default:
		return &apperrors.ConfigurationError{Message: fmt.Sprintf("unknown REMOTE_BACKEND %q (valid: memory, http)", config.RemoteBackend)}
	}

	if config.DefaultCoachID <= 0 {
		return &apperrors.ConfigurationError{Message: "DEFAULT_COACH_ID must be positive"}
	}
	if config.FetchConcurrency < 0 {
		return &apperrors.ConfigurationError{Message: "FETCH_CONCURRENCY must not be negative"}
	}
	if config.SessionIdleMinutes <= 0 {
		return &apperrors.ConfigurationError{Message: "SESSION_IDLE_MINUTES must be positive"}
	}
	if !config.IsDevelopment() && config.NATSURL == "" {
		return &apperrors.ConfigurationError{Message: "NATS_URL is required outside development"}
	}

	return nil
}

func requireURL(name, raw string) error {
	if raw == "" {
		return &apperrors.ConfigurationError{Message: name + " is required for the http backend"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &apperrors.ConfigurationError{Message: fmt.Sprintf("%s must be an absolute URL, got %q", name, raw)}
	}
	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

// SessionIdle returns how long an unused session is kept
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// Scopes returns the comma separated REMOTE_SCOPES as a list
func (c *Config) Scopes() []string {
	var scopes []string
	for _, s := range strings.Split(c.RemoteScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
