package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration of the door access service.
// It merges file defaults and environment overrides to support both local
// and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	MemberJWTPublicKeyPEM string
	AllowEphemeralJWT     bool

	CORSAllowedOrigins []string

	RateLimitPerWindow   int
	RateWindow           time.Duration
	LockTTL              time.Duration
	PendingTTL           time.Duration
	ConfirmWindow        time.Duration
	DispatchDefaultLimit int
	DispatchMaxLimit     int

	// AreaGroups maps an area slug to the membership group id granting it.
	AreaGroups map[string]int64

	MaxDBConns int32
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	HTTP struct {
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"http"`
	Doors struct {
		RateLimitPerWindow    int              `yaml:"rate_limit_per_window"`
		RateWindowSeconds     int              `yaml:"rate_window_seconds"`
		LockTTLSeconds        int              `yaml:"lock_ttl_seconds"`
		PendingTTLSeconds     int              `yaml:"pending_ttl_seconds"`
		ConfirmWindowSeconds  int              `yaml:"confirm_window_seconds"`
		DispatchDefaultLimit  int              `yaml:"dispatch_default_limit"`
		DispatchMaxLimit      int              `yaml:"dispatch_max_limit"`
		AreaGroups            map[string]int64 `yaml:"area_groups"`
	} `yaml:"doors"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "door-access-service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		AllowEphemeralJWT:    true,
		RateLimitPerWindow:   3,
		RateWindow:           60 * time.Second,
		LockTTL:              5 * time.Second,
		PendingTTL:           10 * time.Second,
		ConfirmWindow:        30 * time.Second,
		DispatchDefaultLimit: 3,
		DispatchMaxLimit:     10,
		MaxDBConns:           20,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.HTTP.CORSAllowedOrigins) > 0 {
			cfg.CORSAllowedOrigins = f.HTTP.CORSAllowedOrigins
		}
		if f.Doors.RateLimitPerWindow > 0 {
			cfg.RateLimitPerWindow = f.Doors.RateLimitPerWindow
		}
		if f.Doors.RateWindowSeconds > 0 {
			cfg.RateWindow = time.Duration(f.Doors.RateWindowSeconds) * time.Second
		}
		if f.Doors.LockTTLSeconds > 0 {
			cfg.LockTTL = time.Duration(f.Doors.LockTTLSeconds) * time.Second
		}
		if f.Doors.PendingTTLSeconds > 0 {
			cfg.PendingTTL = time.Duration(f.Doors.PendingTTLSeconds) * time.Second
		}
		if f.Doors.ConfirmWindowSeconds > 0 {
			cfg.ConfirmWindow = time.Duration(f.Doors.ConfirmWindowSeconds) * time.Second
		}
		if f.Doors.DispatchDefaultLimit > 0 {
			cfg.DispatchDefaultLimit = f.Doors.DispatchDefaultLimit
		}
		if f.Doors.DispatchMaxLimit > 0 {
			cfg.DispatchMaxLimit = f.Doors.DispatchMaxLimit
		}
		if len(f.Doors.AreaGroups) > 0 {
			cfg.AreaGroups = f.Doors.AreaGroups
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.MemberJWTPublicKeyPEM = envOrDefault("MEMBER_JWT_PUBLIC_KEY_PEM", cfg.MemberJWTPublicKeyPEM)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.CORSAllowedOrigins = envCSV("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.RateLimitPerWindow = envInt("DOOR_RATE_LIMIT", cfg.RateLimitPerWindow)
	cfg.RateWindow = time.Duration(envInt("DOOR_RATE_WINDOW_SECONDS", int(cfg.RateWindow.Seconds()))) * time.Second
	cfg.LockTTL = time.Duration(envInt("DOOR_LOCK_TTL_SECONDS", int(cfg.LockTTL.Seconds()))) * time.Second
	cfg.PendingTTL = time.Duration(envInt("DOOR_PENDING_TTL_SECONDS", int(cfg.PendingTTL.Seconds()))) * time.Second
	cfg.ConfirmWindow = time.Duration(envInt("DOOR_CONFIRM_WINDOW_SECONDS", int(cfg.ConfirmWindow.Seconds()))) * time.Second
	cfg.DispatchDefaultLimit = envInt("DOOR_DISPATCH_DEFAULT_LIMIT", cfg.DispatchDefaultLimit)
	cfg.DispatchMaxLimit = envInt("DOOR_DISPATCH_MAX_LIMIT", cfg.DispatchMaxLimit)

	if areas := envAreaGroups("DOOR_AREA_GROUPS"); len(areas) > 0 {
		cfg.AreaGroups = areas
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if len(cfg.AreaGroups) == 0 {
		return Config{}, fmt.Errorf("missing door area configuration (doors.area_groups or DOOR_AREA_GROUPS)")
	}
	if cfg.MemberJWTPublicKeyPEM == "" && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing MEMBER_JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}

// envAreaGroups parses "area=groupId,area=groupId" pairs. Malformed pairs
// are skipped rather than failing startup.
func envAreaGroups(name string) map[string]int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	out := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		groupID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || strings.TrimSpace(key) == "" {
			continue
		}
		out[strings.TrimSpace(key)] = groupID
	}
	return out
}
