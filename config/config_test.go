package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boardctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadClientFileAndEnv(t *testing.T) {
	path := writeFile(t, `
base_url: http://board.local
board_id: 3
token: from-file
snapshot_cache_ttl: 1m
search_debounce: 100ms
endpoints:
  export: http://exports.local/3.json
`)
	cfg, err := LoadClient(path, env(map[string]string{"BOARD_TOKEN": "from-env", "BOARD_ID": "9"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token != "from-env" || cfg.BoardID != 9 {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.SnapshotCacheTTL != time.Minute || cfg.SearchDebounce != 100*time.Millisecond {
		t.Fatalf("unexpected durations %v %v", cfg.SnapshotCacheTTL, cfg.SearchDebounce)
	}
	e := cfg.BoardEndpoints()
	if e.Export != "http://exports.local/3.json" {
		t.Fatalf("expected file endpoint to win, got %s", e.Export)
	}
	if e.CardMove != "http://board.local/api/boards/9/card/move/" {
		t.Fatalf("unexpected derived endpoint %s", e.CardMove)
	}
}

func TestLoadClientMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"), env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(DefaultClient(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadClientRejectsBadValues(t *testing.T) {
	if _, err := LoadClient("", env(map[string]string{"BOARD_ID": "abc"})); err == nil {
		t.Fatalf("expected error for bad board id")
	}
	if _, err := LoadClient("", env(map[string]string{"SEARCH_DEBOUNCE": "-1s"})); err == nil {
		t.Fatalf("expected error for negative debounce")
	}
	if _, err := LoadClient(writeFile(t, "base_url: [\n"), env(nil)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServiceTestMode(t *testing.T) {
	s, err := LoadService(env(map[string]string{
		"AUTH_TEST_MODE":  "1",
		"TEST_JWT_SECRET": "secret",
		"PORT":            "9000",
		"DEBUG":           "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.ListenAddr != ":9000" || !s.Debug || s.Backend != BackendMemory {
		t.Fatalf("unexpected service config %+v", s)
	}
	if s.DedupeTTL != 24*time.Hour || s.RedisURL != "" || s.BoardsTable != "Boards" || s.InstanceID != -1 {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestLoadServiceErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":      {"AUTH_TEST_MODE": "1"},
		"missing auth":        {},
		"tables without conn": {"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "STORE_BACKEND": "tables"},
		"unknown backend":     {"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "STORE_BACKEND": "sqlite"},
		"bad ttl":             {"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "JWKS_CACHE_TTL": "0s"},
		"bad dedupe ttl":      {"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "DEDUPER_TTL": "soon"},
		"instance too large":  {"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "INSTANCE_ID": "1024"},
		"instance not number": {"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "INSTANCE_ID": "web-1"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadService(env(vars)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestServiceAuthURLs(t *testing.T) {
	s := Service{AuthDomain: "tenant.example.com"}
	if s.JWKSURL() != "https://tenant.example.com/.well-known/jwks.json" {
		t.Fatalf("unexpected jwks url %s", s.JWKSURL())
	}
	if s.Issuer() != "https://tenant.example.com/" {
		t.Fatalf("unexpected issuer %s", s.Issuer())
	}
}

func TestLoadTables(t *testing.T) {
	got := LoadTables(env(map[string]string{
		"STORAGE_CONNECTION_STRING": "UseDevelopmentStorage=true",
		"CARDS_TABLE":               "Cards2",
	}))
	want := Tables{
		ConnectionString: "UseDevelopmentStorage=true",
		ListsTable:       "BoardLists",
		CardsTable:       "Cards2",
		BoardsTable:      "Boards",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tables mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Boards", "BoardLists", "Cards2"}, got.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadServiceInstanceID(t *testing.T) {
	s, err := LoadService(env(map[string]string{"AUTH_TEST_MODE": "1", "TEST_JWT_SECRET": "s", "INSTANCE_ID": "7"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.InstanceID != 7 {
		t.Fatalf("expected instance 7, got %d", s.InstanceID)
	}
}
