package api

import (
	"maps"
	"net/http"
	"time"
)

// StatsProvider reports service counters for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the provider's counters plus the API's uptime.
type StatsHandler struct {
	statsProvider StatsProvider
	startedAt     time.Time
}

// NewStatsHandler creates a stats handler; uptime counts from now.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, startedAt: time.Now()}
}

// HandleStats handles GET /stats. With ?key=name only that counter is
// returned, as {name: value}.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	stats := maps.Clone(h.statsProvider.GetStats())
	if stats == nil {
		stats = map[string]interface{}{}
	}
	stats["uptimeSeconds"] = int64(time.Since(h.startedAt).Seconds())

	if key := r.URL.Query().Get("key"); key != "" {
		v, ok := stats[key]
		if !ok {
			writeKind(r.Context(), w, NewKind("stats", ErrNotFound))
			return
		}
		stats = map[string]interface{}{key: v}
	}
	writeJSON(w, http.StatusOK, stats)
}
