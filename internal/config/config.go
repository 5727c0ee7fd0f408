package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type RouteRule struct {
	Prefix string   `toml:"prefix"`
	Roles  []string `toml:"roles"`
}

type Config struct {
	ListenPort int    `toml:"port"`
	BackendURL string `toml:"backend_url"`

	Session struct {
		StoragePath string `toml:"storage_path"`
		AutoRefresh bool   `toml:"auto_refresh"`

		// Seconds before expiry at which a token that is read for a request gets refreshed
		RefreshThreshold int `toml:"refresh_threshold"`
		// Seconds between expiry checks while signed in
		CheckInterval  int `toml:"check_interval"`
		RequestTimeout int `toml:"request_timeout"`

		// Render "Bearer null" when no token is held, instead of leaving the header out
		PreserveNullBearer bool `toml:"preserve_null_bearer"`
	} `toml:"session"`

	AccessControl struct {
		// Paths that never require a session
		PublicPaths []string `toml:"public_paths"`

		// Path prefixes (without leading slash) that bypass the gateway guard entirely
		ExcludedPrefixes []string `toml:"excluded_prefixes"`

		// Ordered route prefix => allowed roles. First match wins
		Routes []RouteRule `toml:"routes"`
	} `toml:"access_control"`
}

var allRoles = []string{"empregador", "empregado", "familiar", "parceiro", "subordinado", "admin", "owner"}

func DefaultRoutes() []RouteRule {
	return []RouteRule{
		{Prefix: "/dashboard", Roles: allRoles},
		{Prefix: "/people", Roles: []string{"empregador", "admin", "owner"}},
		{Prefix: "/tasks", Roles: allRoles},
		{Prefix: "/groups", Roles: []string{"empregador", "parceiro", "admin", "owner"}},
		{Prefix: "/notifications", Roles: allRoles},
		{Prefix: "/settings", Roles: allRoles},
	}
}

// TOML unmarshaller doesn't override fields that weren't set in the TOML, so we can apply defaults here
func (c *Config) setDefaults() {
	c.ListenPort = 3000
	c.BackendURL = "http://localhost:8000/api"

	c.Session.StoragePath = defaultStoragePath()
	c.Session.AutoRefresh = true
	c.Session.RefreshThreshold = 5 * 60
	c.Session.CheckInterval = 60
	c.Session.RequestTimeout = 10
	c.Session.PreserveNullBearer = true

	c.AccessControl.PublicPaths = []string{
		"/login",
		"/splash",
		"/api/auth/login",
		"/api/auth/register",
		"/_next",
		"/favicon.ico",
		"/static",
	}
	c.AccessControl.ExcludedPrefixes = []string{"api", "_next/static", "_next/image", "favicon.ico"}
	c.AccessControl.Routes = DefaultRoutes()
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(home, ".dom", "session.json")
}

func Default() *Config {
	conf := new(Config)
	conf.setDefaults()
	return conf
}

func (c *Config) RefreshThreshold() time.Duration {
	return time.Duration(c.Session.RefreshThreshold) * time.Second
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Session.CheckInterval) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Session.RequestTimeout) * time.Second
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("please supply backend_url")
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")

	if c.Session.StoragePath == "" {
		return fmt.Errorf("session.storage_path can't be empty")
	}

	if c.Session.CheckInterval <= 0 || c.Session.RequestTimeout <= 0 {
		return fmt.Errorf("session.check_interval and session.request_timeout must be positive")
	}

	if c.Session.RefreshThreshold < 0 {
		return fmt.Errorf("session.refresh_threshold can't be negative")
	}

	if len(c.AccessControl.Routes) == 0 {
		return fmt.Errorf("access_control.routes is empty, nobody would be able to reach any page")
	}

	return validateRouteOrder(c.AccessControl.Routes)
}

// With first-match semantics, a later entry whose prefix extends an earlier one can never match
func validateRouteOrder(routes []RouteRule) error {
	for i, earlier := range routes {
		if earlier.Prefix == "" || earlier.Prefix[0] != '/' {
			return fmt.Errorf("route prefix %q must start with /", earlier.Prefix)
		}
		for _, later := range routes[i+1:] {
			if later.Prefix == earlier.Prefix {
				return fmt.Errorf("route prefix %q is declared twice", later.Prefix)
			}
			if strings.HasPrefix(later.Prefix, earlier.Prefix) {
				return fmt.Errorf("route prefix %q is shadowed by the earlier, less specific %q: declare it first", later.Prefix, earlier.Prefix)
			}
		}
	}
	return nil
}

func LoadFromTomlFileAndValidate(filepath string) (*Config, error) {
	file, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	return LoadFromToml(file)
}

func LoadFromToml(data []byte) (*Config, error) {
	conf := Default()

	// Lists declared in the file replace the defaults wholesale instead of being appended to them
	var probe struct {
		AccessControl struct {
			PublicPaths      []string    `toml:"public_paths"`
			ExcludedPrefixes []string    `toml:"excluded_prefixes"`
			Routes           []RouteRule `toml:"routes"`
		} `toml:"access_control"`
	}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.AccessControl.PublicPaths != nil {
		conf.AccessControl.PublicPaths = nil
	}
	if probe.AccessControl.ExcludedPrefixes != nil {
		conf.AccessControl.ExcludedPrefixes = nil
	}
	if probe.AccessControl.Routes != nil {
		conf.AccessControl.Routes = nil
	}

	if err := toml.Unmarshal(data, conf); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return conf, nil
}
