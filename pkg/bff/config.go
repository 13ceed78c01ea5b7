package bff

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mantis-app/auth-gateway/pkg/oidc"
	"gopkg.in/yaml.v3"
)

// PathRulesConfig classifies application paths. Protected and AuthOnly are
// prefix sets and must be disjoint; any other path is unrestricted.
type PathRulesConfig struct {
	Protected []string `yaml:"protected"`
	AuthOnly  []string `yaml:"auth_only"`
	// DefaultLanding is where successful logins (and authenticated visitors
	// of auth-only pages) end up.
	DefaultLanding string `yaml:"default_landing" validate:"required"`
	// Login is the UI login page the route guard redirects to.
	Login string `yaml:"login" validate:"required"`
	// ErrorLanding receives callback failures as ?error=<code>.
	ErrorLanding string `yaml:"error_landing" validate:"required"`
	// GuardExcluded prefixes bypass the route guard entirely.
	GuardExcluded []string `yaml:"guard_excluded"`
}

type Config struct {
	Address string `yaml:"address" validate:"required"`
	// PublicBaseURL is this gateway's externally visible base URL; the
	// callback redirect_uri is derived from it and must match byte-for-byte
	// between login and callback.
	PublicBaseURL string `yaml:"public_base_url" validate:"required,url"`
	// BackendBaseURL enables the /api bearer proxy when set.
	BackendBaseURL string `yaml:"backend_base_url" validate:"omitempty,url"`
	// ProductionGradeCookies marks all gateway cookies Secure.
	ProductionGradeCookies bool            `yaml:"production_grade_cookies"`
	IdentityProvider       oidc.Config     `yaml:"identity_provider" validate:"required"`
	Paths                  PathRulesConfig `yaml:"paths"`
}

func (c *Config) applyDefaults() {
	if c.Paths.DefaultLanding == "" {
		c.Paths.DefaultLanding = "/dashboard"
	}
	if c.Paths.Login == "" {
		c.Paths.Login = "/login"
	}
	if c.Paths.ErrorLanding == "" {
		c.Paths.ErrorLanding = "/"
	}
	if c.Paths.GuardExcluded == nil {
		c.Paths.GuardExcluded = []string{"/auth/", "/api/"}
	}
}

func (c *Config) validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// protected and auth-only sets must not overlap
	authOnly := make(map[string]bool, len(c.Paths.AuthOnly))
	for _, path := range c.Paths.AuthOnly {
		authOnly[path] = true
	}
	for _, path := range c.Paths.Protected {
		if authOnly[path] {
			return fmt.Errorf("path %q is both protected and auth-only", path)
		}
	}

	return nil
}

func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
