package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
service:
  id: door-access-service
dependencies:
  postgres_url: postgres://localhost/door
  redis_url: redis://localhost:6379/0
doors:
  area_groups:
    depot: 101
    workshop: 103
`

func TestLoadConfigDefaultsAndFile(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.GRPCPort != 9090 {
		t.Fatalf("default ports wrong: %d/%d", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.RateLimitPerWindow != 3 || cfg.RateWindow != 60*time.Second {
		t.Fatalf("default rate policy wrong: %d/%v", cfg.RateLimitPerWindow, cfg.RateWindow)
	}
	if cfg.LockTTL != 5*time.Second || cfg.PendingTTL != 10*time.Second || cfg.ConfirmWindow != 30*time.Second {
		t.Fatalf("default door timings wrong: %v/%v/%v", cfg.LockTTL, cfg.PendingTTL, cfg.ConfirmWindow)
	}
	if cfg.AreaGroups["depot"] != 101 || cfg.AreaGroups["workshop"] != 103 {
		t.Fatalf("area groups not loaded: %v", cfg.AreaGroups)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("DOOR_RATE_LIMIT", "5")
	t.Setenv("DOOR_CONFIRM_WINDOW_SECONDS", "45")
	t.Setenv("DOOR_AREA_GROUPS", "depot=201, sharing=204")
	t.Setenv("DB_URL", "postgres://override/door")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 9999 {
		t.Fatalf("env port override lost: %d", cfg.HTTPPort)
	}
	if cfg.RateLimitPerWindow != 5 || cfg.ConfirmWindow != 45*time.Second {
		t.Fatalf("env policy overrides lost: %d/%v", cfg.RateLimitPerWindow, cfg.ConfirmWindow)
	}
	if cfg.DatabaseURL != "postgres://override/door" {
		t.Fatalf("DB_URL override lost: %s", cfg.DatabaseURL)
	}
	if cfg.AreaGroups["depot"] != 201 || cfg.AreaGroups["sharing"] != 204 || len(cfg.AreaGroups) != 2 {
		t.Fatalf("DOOR_AREA_GROUPS override lost: %v", cfg.AreaGroups)
	}
}

func TestLoadConfigRequiresAreas(t *testing.T) {
	t.Setenv("DOOR_AREA_GROUPS", "")
	path := writeConfig(t, `
dependencies:
  postgres_url: postgres://localhost/door
  redis_url: redis://localhost:6379/0
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("config without areas must fail")
	}
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("POSTGRES_URL", "")
	path := writeConfig(t, `
doors:
  area_groups:
    depot: 101
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("config without database url must fail")
	}
}
