package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/session"
	"github.com/natnael6825/ecctest/internal/validate"
)

type API struct {
	cfg        config.Config
	cache      services.Cache
	registry   *category.Registry
	fetcher    *services.Fetcher
	admin      *services.AdminClient
	users      *services.UserClient
	preference *services.PreferenceClient
	uploads    *services.UploadClient
	sessions   session.Store
	lockout    session.Lockout
	issuer     *session.Issuer
	now        func() time.Time
}

func New(cfg config.Config, cache services.Cache, sessions session.Store, lockout session.Lockout) *API {
	registry := category.NewRegistry(cfg.UpstreamBaseURL, cfg.CategoryURLs, cfg.CategoryAPIKeys)
	return &API{
		cfg:        cfg,
		cache:      cache,
		registry:   registry,
		fetcher:    services.NewFetcher(cfg, registry, cache),
		admin:      services.NewAdminClient(cfg),
		users:      services.NewUserClient(cfg),
		preference: services.NewPreferenceClient(cfg),
		uploads:    services.NewUploadClient(cfg),
		sessions:   sessions,
		lockout:    lockout,
		issuer:     session.NewIssuer(cfg.JWTSecret, cfg.SessionTTL),
		now:        time.Now,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeValidation(w http.ResponseWriter, errs []validate.FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}

// readJSON decodes a single JSON value of at most 1 MiB.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to read JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must have only a single json value")
	}
	return nil
}

// upstreamToken is the admin bearer token stored with the caller's session.
func upstreamToken(r *http.Request) string {
	cur, ok := session.FromContext(r.Context())
	if !ok {
		return ""
	}
	return cur.UpstreamToken
}

func actor(r *http.Request) string {
	cur, _ := session.FromContext(r.Context())
	return cur.Email
}

// categoryParam reads ?category=. Empty selects every category.
func categoryParam(r *http.Request) (category.Category, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("category"))
	if raw == "" || strings.EqualFold(raw, "all") {
		return category.Invalid, nil
	}
	return category.Parse(raw)
}

func parseIntParam(v string, def int, min int, max int) int {
	if v == "" {
		return def
	}
	out, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	if out < min {
		return min
	}
	if out > max {
		return max
	}
	return out
}

func (a *API) nowISO() string {
	return a.now().UTC().Format(time.RFC3339)
}

// mergeMissing unions failed-category lists keeping first-seen order.
func mergeMissing(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, l := range lists {
		for _, c := range l {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
