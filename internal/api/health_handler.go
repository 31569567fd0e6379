package api

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/delivery-relay/internal/filestore"
)

// HealthChecker reports the health of the relay's dependencies.
// Any of the dependencies may be nil (memory-only directory, no dedup);
// nil dependencies report as "disabled" and never fail readiness.
type HealthChecker struct {
	db        *sql.DB
	redis     *redis.Client
	files     filestore.Store
	startTime time.Time
}

// NewHealthChecker creates a health checker for the given dependencies.
func NewHealthChecker(db *sql.DB, rdb *redis.Client, files filestore.Store) *HealthChecker {
	return &HealthChecker{
		db:        db,
		redis:     rdb,
		files:     files,
		startTime: time.Now(),
	}
}

type healthStatus struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// HandleLiveness answers as long as the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness reports whether the relay can accept traffic.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	hc.respondChecks(w, r)
}

// HandleHealth reports overall health with per-dependency detail.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	hc.respondChecks(w, r)
}

func (hc *HealthChecker) respondChecks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := hc.runChecks(ctx)

	status := "healthy"
	code := http.StatusOK
	for _, v := range checks {
		if v != "ok" && v != "disabled" {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	respondJSON(w, code, healthStatus{
		Status: status,
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// runChecks probes each dependency concurrently.
func (hc *HealthChecker) runChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string, 3)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(name, result string) {
		mu.Lock()
		checks[name] = result
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		if hc.db == nil {
			record("database", "disabled")
			return
		}
		if err := hc.db.PingContext(ctx); err != nil {
			record("database", err.Error())
			return
		}
		record("database", "ok")
	}()
	go func() {
		defer wg.Done()
		if hc.redis == nil {
			record("redis", "disabled")
			return
		}
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			record("redis", err.Error())
			return
		}
		record("redis", "ok")
	}()
	go func() {
		defer wg.Done()
		if hc.files == nil {
			record("file_store", "disabled")
			return
		}
		if err := hc.files.Ping(ctx); err != nil {
			record("file_store", err.Error())
			return
		}
		record("file_store", "ok")
	}()
	wg.Wait()

	return checks
}
