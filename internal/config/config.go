package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/natnael6825/ecctest/internal/category"
)

type Config struct {
	Port              string
	UpstreamBaseURL   string
	CategoryURLs      map[category.Category]string
	CategoryAPIKeys   map[category.Category]string
	AdminBaseURL      string
	UserBaseURL       string
	PreferenceBaseURL string
	UploadURL         string
	RedisURL          string
	CacheTTLOffers    time.Duration
	RequestTimeout    time.Duration
	RateLimitPerMin   int
	RateLimitBurst    int
	CircuitFailLimit  int
	CircuitCooldown   time.Duration
	FanoutConcurrency int
	LookupConcurrency int
	JWTSecret         string
	SessionTTL        time.Duration
	CookieSecure      bool
	LockoutAttempts   int
	LockoutWindow     time.Duration
	AllowedOrigins    []string
	TrustedProxies    []string
	ExcludedChatIDs   []string
	InteractionsSince time.Time
	Location          *time.Location
	MaxUploadBytes    int64
}

var defaults = map[string]any{
	"PORT":               "8080",
	"UPSTREAM_BASE_URL":  "http://localhost:7050",
	"ADMIN_BASE_URL":     "",
	"USER_BASE_URL":      "",
	"PREFERENCE_URL":     "",
	"UPLOAD_URL":         "",
	"REDIS_URL":          "redis://localhost:6379",
	"CACHE_TTL_OFFERS":   15,
	"REQUEST_TIMEOUT":    12,
	"RATE_LIMIT_PER_MIN": 120,
	"RATE_LIMIT_BURST":   20,
	"CIRCUIT_FAIL_LIMIT": 3,
	"CIRCUIT_COOLDOWN":   20,
	"FANOUT_CONCURRENCY": 9,
	"LOOKUP_CONCURRENCY": 4,
	"JWT_SECRET":         "",
	"SESSION_TTL":        86400,
	"COOKIE_SECURE":      false,
	"LOCKOUT_ATTEMPTS":   5,
	"LOCKOUT_WINDOW":     900,
	"ALLOWED_ORIGINS":    "*",
	"TRUSTED_PROXIES":    "",
	"EXCLUDED_CHAT_IDS":  "415379196",
	"INTERACTIONS_SINCE": "2024-12-24T09:13:46Z",
	"BUCKET_TIMEZONE":    "UTC",
	"MAX_UPLOAD_BYTES":   10 << 20,
}

// Load reads defaults, an optional config file named by CONFIG_FILE, and the
// environment, in increasing priority. Durations are given in seconds.
func Load() Config {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("config: read %s: %v", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	upstream := strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/")
	cfg := Config{
		Port:              v.GetString("PORT"),
		UpstreamBaseURL:   upstream,
		CategoryURLs:      make(map[category.Category]string),
		CategoryAPIKeys:   make(map[category.Category]string),
		AdminBaseURL:      orDefault(v.GetString("ADMIN_BASE_URL"), upstream+"/api/Admin"),
		UserBaseURL:       orDefault(v.GetString("USER_BASE_URL"), upstream+"/api/UserService"),
		PreferenceBaseURL: orDefault(v.GetString("PREFERENCE_URL"), upstream+"/api/Preference"),
		UploadURL:         orDefault(v.GetString("UPLOAD_URL"), upstream+"/api/Fileupload/upload"),
		RedisURL:          v.GetString("REDIS_URL"),
		CacheTTLOffers:    seconds(v, "CACHE_TTL_OFFERS"),
		RequestTimeout:    seconds(v, "REQUEST_TIMEOUT"),
		RateLimitPerMin:   v.GetInt("RATE_LIMIT_PER_MIN"),
		RateLimitBurst:    v.GetInt("RATE_LIMIT_BURST"),
		CircuitFailLimit:  v.GetInt("CIRCUIT_FAIL_LIMIT"),
		CircuitCooldown:   seconds(v, "CIRCUIT_COOLDOWN"),
		FanoutConcurrency: v.GetInt("FANOUT_CONCURRENCY"),
		LookupConcurrency: v.GetInt("LOOKUP_CONCURRENCY"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		SessionTTL:        seconds(v, "SESSION_TTL"),
		CookieSecure:      v.GetBool("COOKIE_SECURE"),
		LockoutAttempts:   v.GetInt("LOCKOUT_ATTEMPTS"),
		LockoutWindow:     seconds(v, "LOCKOUT_WINDOW"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		TrustedProxies:    splitList(v.GetString("TRUSTED_PROXIES")),
		ExcludedChatIDs:   splitList(v.GetString("EXCLUDED_CHAT_IDS")),
		Location:          time.UTC,
		MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_BYTES"),
	}
	for _, c := range category.All() {
		prefix := "CATEGORY_" + strings.ToUpper(c.String())
		if u := strings.TrimSpace(v.GetString(prefix + "_URL")); u != "" {
			cfg.CategoryURLs[c] = u
		}
		if k := strings.TrimSpace(v.GetString(prefix + "_API_KEY")); k != "" {
			cfg.CategoryAPIKeys[c] = k
		}
	}
	if s := v.GetString("INTERACTIONS_SINCE"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			cfg.InteractionsSince = t
		} else {
			log.Printf("config: INTERACTIONS_SINCE %q: %v", s, err)
		}
	}
	if tz := v.GetString("BUCKET_TIMEZONE"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Location = loc
		} else {
			log.Printf("config: BUCKET_TIMEZONE %q: %v", tz, err)
		}
	}
	if cfg.FanoutConcurrency <= 0 {
		cfg.FanoutConcurrency = len(category.All())
	}
	return cfg
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func orDefault(v, def string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
