package handlers

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/natnael6825/ecctest/internal/models"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings the cache and every backend in parallel. Category backends
// that do not answer are listed in data_missing; the service stays ok as long
// as one category answers.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]pinger{
		"admin": a.admin,
		"users": a.users,
	}
	if p, ok := a.cache.(pinger); ok {
		checks["cache"] = p
	}
	for _, c := range a.registry.Endpoints() {
		cc, err := a.fetcher.Client(c.Category)
		if err == nil {
			checks["category:"+c.Category.String()] = cc
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	depsStatus := make(map[string]models.DepStatus, len(checks))
	for name, p := range checks {
		wg.Add(1)
		go func(name string, p pinger) {
			defer wg.Done()
			st := models.DepStatus{Ok: true}
			if err := p.Ping(ctx); err != nil {
				st = models.DepStatus{Ok: false, Error: err.Error()}
			}
			mu.Lock()
			depsStatus[name] = st
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	missing := []string{}
	categoriesUp := 0
	for _, c := range a.registry.Endpoints() {
		if depsStatus["category:"+c.Category.String()].Ok {
			categoriesUp++
			continue
		}
		missing = append(missing, c.Category.String())
	}
	ok := categoriesUp > 0
	if st, has := depsStatus["cache"]; has && !st.Ok {
		ok = false
	}

	writeJSON(w, http.StatusOK, models.HealthResponse{
		Ok:           ok,
		TsISO:        a.nowISO(),
		Service:      "commodity-dashboard-api",
		Version:      os.Getenv("SERVICE_VERSION"),
		CacheBackend: a.cache.Backend(),
		DepsStatus:   depsStatus,
		DataMissing:  missing,
	})
}
