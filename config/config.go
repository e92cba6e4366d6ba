// Package config loads settings for the board service and the terminal
// client. Files are YAML; environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lini/command"
)

// Getenv matches os.Getenv so tests can supply their own environment.
type Getenv func(string) string

// Client configures boardctl.
type Client struct {
	BaseURL          string            `yaml:"base_url"`
	BoardID          int64             `yaml:"board_id"`
	Token            string            `yaml:"token"`
	RedisURL         string            `yaml:"redis_url"`
	SnapshotCacheTTL time.Duration     `yaml:"snapshot_cache_ttl"`
	SearchDebounce   time.Duration     `yaml:"search_debounce"`
	Debug            bool              `yaml:"debug"`
	Endpoints        command.Endpoints `yaml:"endpoints"`
}

// DefaultClient is used for fields missing from both file and environment.
func DefaultClient() Client {
	return Client{
		BaseURL:          "http://localhost:8080",
		SnapshotCacheTTL: 30 * time.Second,
		SearchDebounce:   250 * time.Millisecond,
	}
}

// LoadClient reads path (if non-empty and present) and applies environment
// overrides.
func LoadClient(path string, getenv Getenv) (Client, error) {
	cfg := DefaultClient()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Client{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Client{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Client{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Client) applyEnv(getenv Getenv) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("BOARD_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := getenv("BOARD_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BOARD_ID: %w", err)
		}
		c.BoardID = id
	}
	if v := getenv("BOARD_TOKEN"); v != "" {
		c.Token = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := getenv("SNAPSHOT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SNAPSHOT_CACHE_TTL: %w", err)
		}
		c.SnapshotCacheTTL = d
	}
	if v := getenv("SEARCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SEARCH_DEBOUNCE: %w", err)
		}
		c.SearchDebounce = d
	}
	if v := getenv("DEBUG"); v != "" {
		if dbg, err := strconv.ParseBool(v); err == nil {
			c.Debug = dbg
		}
	}
	return nil
}

// Validate reports settings that can never work.
func (c Client) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base_url is required")
	}
	if c.SnapshotCacheTTL < 0 {
		return errors.New("snapshot_cache_ttl must not be negative")
	}
	if c.SearchDebounce < 0 {
		return errors.New("search_debounce must not be negative")
	}
	return nil
}

// BoardEndpoints returns the endpoint table of the configured board. Entries set
// in the file win over the ones derived from base_url.
func (c Client) BoardEndpoints() command.Endpoints {
	return c.Endpoints.Merge(command.EndpointsFor(c.BaseURL, c.BoardID))
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendTables = "tables"
)

// MaxInstanceID bounds INSTANCE_ID; it matches storage.MaxInstance.
const MaxInstanceID = 1023

// Tables names the Azure Tables account and tables holding boards.
type Tables struct {
	ConnectionString string
	ListsTable       string
	CardsTable       string
	BoardsTable      string
}

// LoadTables reads the table settings from the environment.
func LoadTables(getenv Getenv) Tables {
	if getenv == nil {
		getenv = os.Getenv
	}
	t := Tables{
		ConnectionString: getenv("STORAGE_CONNECTION_STRING"),
		ListsTable:       "BoardLists",
		CardsTable:       "BoardCards",
		BoardsTable:      "Boards",
	}
	if v := getenv("LISTS_TABLE"); v != "" {
		t.ListsTable = v
	}
	if v := getenv("CARDS_TABLE"); v != "" {
		t.CardsTable = v
	}
	if v := getenv("BOARDS_TABLE"); v != "" {
		t.BoardsTable = v
	}
	return t
}

// Names lists the tables in creation order.
func (t Tables) Names() []string {
	return []string{t.BoardsTable, t.ListsTable, t.CardsTable}
}

// Service configures board-api.
type Service struct {
	Debug      bool
	ListenAddr string

	Backend string
	Tables
	// InstanceID is stamped into ids issued by this instance; -1 picks one
	// at random.
	InstanceID int

	// RedisURL enables command deduplication when set.
	RedisURL  string
	DedupeTTL time.Duration

	AuthDomain   string
	AuthAudience string
	AuthTestMode bool
	TestSecret   string
	JWKSCacheTTL time.Duration
}

// LoadService reads the service settings from the environment.
func LoadService(getenv Getenv) (Service, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	s := Service{
		ListenAddr:   ":8080",
		Backend:      BackendMemory,
		Tables:       LoadTables(getenv),
		InstanceID:   -1,
		DedupeTTL:    24 * time.Hour,
		JWKSCacheTTL: 15 * time.Minute,
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil {
		s.Debug = dbg
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		s.ListenAddr = v
	} else if v := getenv("PORT"); v != "" {
		s.ListenAddr = ":" + v
	}
	if v := getenv("STORE_BACKEND"); v != "" {
		s.Backend = strings.ToLower(v)
	}

	if v := getenv("INSTANCE_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > MaxInstanceID {
			return Service{}, fmt.Errorf("invalid INSTANCE_ID: %q", v)
		}
		s.InstanceID = n
	}

	s.RedisURL = getenv("REDIS_URL")
	if v := getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Service{}, fmt.Errorf("invalid DEDUPER_TTL: %q", v)
		}
		s.DedupeTTL = d
	}

	s.AuthDomain = getenv("AUTH_DOMAIN")
	s.AuthAudience = getenv("AUTH_AUDIENCE")
	s.AuthTestMode = getenv("AUTH_TEST_MODE") == "1"
	s.TestSecret = getenv("TEST_JWT_SECRET")
	if v := getenv("JWKS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Service{}, fmt.Errorf("invalid JWKS_CACHE_TTL: %q", v)
		}
		s.JWKSCacheTTL = d
	}

	switch s.Backend {
	case BackendMemory:
	case BackendTables:
		if s.ConnectionString == "" {
			return Service{}, errors.New("missing storage config")
		}
	default:
		return Service{}, fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
	}
	if s.AuthTestMode {
		if s.TestSecret == "" {
			return Service{}, errors.New("TEST_JWT_SECRET must be set when AUTH_TEST_MODE=1")
		}
	} else if s.AuthDomain == "" || s.AuthAudience == "" {
		return Service{}, errors.New("missing auth config")
	}
	return s, nil
}

// JWKSURL is the key set of the configured identity provider.
func (s Service) JWKSURL() string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", s.AuthDomain)
}

// Issuer is the expected token issuer.
func (s Service) Issuer() string {
	return "https://" + s.AuthDomain + "/"
}
