package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Database DBConfig
	RabbitMQ MQConfig
	Redis    RedisConfig
	Services ServicesConfig
	JWT      JWTConfig
	Tracking TrackingConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int
	MinConns        int
	// ConnectAttempts bounds the startup ping retries.
	ConnectAttempts int
}

type MQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// LiveTTL bounds how long a live position survives without refresh.
	LiveTTL time.Duration
}

type ServicesConfig struct {
	APIPort int
	// DevicePort serves browser position reports for a web-platform tracker.
	DevicePort int
	// WSAllowedOrigins limits browser WebSocket upgrades; empty allows any.
	WSAllowedOrigins []string
}

type JWTConfig struct {
	Secret        string
	ExpiryMinutes int
}

// TrackingConfig drives the tracker process and the live-location read path.
type TrackingConfig struct {
	Interval             time.Duration
	PositionTimeout      time.Duration
	MinMovementKm        float64
	MaxConsecutiveErrors int
	QueueLimit           int
	CacheTTL             time.Duration

	// Platform selects permission/accuracy behaviour: web | native.
	Platform string
	// Store selects the real-time store: postgres | redis.
	Store string

	RESTEnabled bool
	RESTBaseURL string

	GeocoderURL       string
	GeocoderUserAgent string

	// Token is the bearer token the tracker authenticates with.
	Token string

	SimulatedRoute    []Waypoint
	SimulatedSpeedKmh float64

	// SimulateDelivery makes the tracker drive a demo delivery from Merchant to Consumer.
	SimulateDelivery bool
	Merchant         Waypoint
	Consumer         Waypoint

	RateLimitRPS   float64
	RateLimitBurst int
}

type Waypoint struct {
	Lat float64
	Lon float64
}

// Load reads .env, then CONFIG_DIR (default ./config) YAML files; ENV always wins.
func Load() Config {
	_ = godotenv.Load()

	configDir := getEnv("CONFIG_DIR", "./config")
	cfg := Config{}

	db := section(configDir, "db.yaml", "")
	cfg.Database.Host = getStr("DB_HOST", db, "host", "localhost")
	cfg.Database.Port = getInt("DB_PORT", db, "port", 5432)
	cfg.Database.User = getStr("DB_USER", db, "user", "brillprime")
	cfg.Database.Password = getStr("DB_PASSWORD", db, "password", "brillprime")
	cfg.Database.Database = getStr("DB_NAME", db, "database", "brillprime")
	cfg.Database.SSLMode = getStr("DB_SSLMODE", db, "sslmode", "disable")
	cfg.Database.MaxConns = getInt("DB_MAX_CONNS", db, "max_conns", 10)
	cfg.Database.MinConns = getInt("DB_MIN_CONNS", db, "min_conns", 1)
	cfg.Database.ConnectAttempts = getInt("DB_CONNECT_ATTEMPTS", db, "connect_attempts", 5)

	mq := section(configDir, "mq.yaml", "")
	cfg.RabbitMQ.Host = getStr("RABBITMQ_HOST", mq, "host", "localhost")
	cfg.RabbitMQ.Port = getInt("RABBITMQ_PORT", mq, "port", 5672)
	cfg.RabbitMQ.User = getStr("RABBITMQ_USER", mq, "user", "guest")
	cfg.RabbitMQ.Password = getStr("RABBITMQ_PASSWORD", mq, "password", "guest")
	cfg.RabbitMQ.VHost = getStr("RABBITMQ_VHOST", mq, "vhost", "/")

	rd := section(configDir, "redis.yaml", "")
	cfg.Redis.Addr = getStr("REDIS_ADDR", rd, "addr", "localhost:6379")
	cfg.Redis.Password = getStr("REDIS_PASSWORD", rd, "password", "")
	cfg.Redis.DB = getInt("REDIS_DB", rd, "db", 0)
	cfg.Redis.LiveTTL = getDuration("REDIS_LIVE_TTL", rd, "live_ttl", 48*time.Hour)

	svc := section(configDir, "service.yaml", "")
	cfg.Services.APIPort = getInt("API_PORT", svc, "api", 3000)
	cfg.Services.DevicePort = getInt("DEVICE_PORT", svc, "device", 3001)
	cfg.Services.WSAllowedOrigins = getList("WS_ALLOWED_ORIGINS", svc, "ws_allowed_origins")

	jwt := section(configDir, "jwt.yaml", "jwt")
	cfg.JWT.Secret = getStr("JWT_SECRET", jwt, "secret", "dev_secret")
	cfg.JWT.ExpiryMinutes = getInt("JWT_EXPIRY_MINUTES", jwt, "expiry_minutes", 60)

	tr := section(configDir, "tracking.yaml", "tracking")
	cfg.Tracking.Interval = getDuration("TRACKING_INTERVAL", tr, "interval", 5*time.Second)
	cfg.Tracking.PositionTimeout = getDuration("TRACKING_POSITION_TIMEOUT", tr, "position_timeout", 15*time.Second)
	cfg.Tracking.MinMovementKm = getFloat("TRACKING_MIN_MOVEMENT_KM", tr, "min_movement_km", 0.01)
	cfg.Tracking.MaxConsecutiveErrors = getInt("TRACKING_MAX_ERRORS", tr, "max_consecutive_errors", 5)
	cfg.Tracking.QueueLimit = getInt("TRACKING_QUEUE_LIMIT", tr, "queue_limit", 50)
	cfg.Tracking.CacheTTL = getDuration("TRACKING_CACHE_TTL", tr, "cache_ttl", 10*time.Second)
	cfg.Tracking.Platform = strings.ToLower(getStr("TRACKING_PLATFORM", tr, "platform", "native"))
	cfg.Tracking.Store = strings.ToLower(getStr("TRACKING_STORE", tr, "store", "postgres"))
	cfg.Tracking.RESTEnabled = getBool("TRACKING_REST_ENABLED", tr, "rest_enabled", false)
	cfg.Tracking.RESTBaseURL = getStr("TRACKING_REST_BASE_URL", tr, "rest_base_url", "http://localhost:3000")
	cfg.Tracking.GeocoderURL = getStr("GEOCODER_URL", tr, "geocoder_url", "https://nominatim.openstreetmap.org")
	cfg.Tracking.GeocoderUserAgent = getStr("GEOCODER_USER_AGENT", tr, "geocoder_user_agent", "brillprime-tracker/1.0")
	cfg.Tracking.Token = getStr("TRACKER_TOKEN", tr, "token", "")
	cfg.Tracking.SimulatedSpeedKmh = getFloat("TRACKING_SIM_SPEED_KMH", tr, "sim_speed_kmh", 30)

	cfg.Tracking.SimulateDelivery = getBool("TRACKING_SIMULATE_DELIVERY", tr, "simulate_delivery", false)
	cfg.Tracking.RateLimitRPS = getFloat("TRACKING_RATE_LIMIT_RPS", tr, "rate_limit_rps", 2)
	cfg.Tracking.RateLimitBurst = getInt("TRACKING_RATE_LIMIT_BURST", tr, "rate_limit_burst", 4)

	route, err := ParseWaypoints(getStr("TRACKING_SIM_ROUTE", tr, "sim_route", "6.5244,3.3792;6.5300,3.3850;6.5412,3.3960"))
	if err == nil {
		cfg.Tracking.SimulatedRoute = route
	}
	if wp, err := ParseWaypoints(getStr("TRACKING_MERCHANT", tr, "merchant", "6.5300,3.3850")); err == nil && len(wp) == 1 {
		cfg.Tracking.Merchant = wp[0]
	}
	if wp, err := ParseWaypoints(getStr("TRACKING_CONSUMER", tr, "consumer", "6.5412,3.3960")); err == nil && len(wp) == 1 {
		cfg.Tracking.Consumer = wp[0]
	}

	return cfg
}

// ParseWaypoints parses "lat,lon;lat,lon".
func ParseWaypoints(s string) ([]Waypoint, error) {
	var out []Waypoint
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("waypoint %q: want lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: %w", pair, err)
		}
		out = append(out, Waypoint{Lat: lat, Lon: lon})
	}
	return out, nil
}

// section returns the keys of one YAML section ("" for the flat root).
// A missing file yields an empty map so defaults and ENV still apply.
func section(dir, file, name string) map[string]string {
	kv, err := parseYAML(filepath.Join(dir, file))
	if err != nil {
		return map[string]string{}
	}
	if name != "" {
		if sec, ok := kv[name]; ok {
			return sec
		}
	}
	if root, ok := kv[""]; ok {
		return root
	}
	return map[string]string{}
}

// parseYAML reads a YAML file into root keys ("") plus one level of nested sections.
// Scalars are kept as their string form so ENV and file values parse the same way.
func parseYAML(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	result := map[string]map[string]string{"": {}}
	for key, val := range doc {
		nested, ok := val.(map[string]any)
		if !ok {
			result[""][key] = scalar(val)
			continue
		}
		sec := make(map[string]string, len(nested))
		for k, v := range nested {
			sec[k] = scalar(v)
		}
		result[key] = sec
	}
	return result, nil
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func lookup(envKey string, kv map[string]string, key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v, true
	}
	if v, ok := kv[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func getStr(envKey string, kv map[string]string, key, def string) string {
	if v, ok := lookup(envKey, kv, key); ok {
		return v
	}
	return def
}

// getList reads a comma-separated value.
func getList(envKey string, kv map[string]string, key string) []string {
	v, ok := lookup(envKey, kv, key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getInt(envKey string, kv map[string]string, key string, def int) int {
	if v, ok := lookup(envKey, kv, key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(envKey string, kv map[string]string, key string, def float64) float64 {
	if v, ok := lookup(envKey, kv, key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(envKey string, kv map[string]string, key string, def bool) bool {
	if v, ok := lookup(envKey, kv, key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getDuration accepts Go durations ("5s") or plain milliseconds ("5000").
func getDuration(envKey string, kv map[string]string, key string, def time.Duration) time.Duration {
	v, ok := lookup(envKey, kv, key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// AMQPURL returns the RabbitMQ connection URL.
func (c MQConfig) AMQPURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}
