package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"dronesim/pkg/link"
)

// RecorderStats is implemented by store.Recorder.
type RecorderStats interface {
	Written() int64
	Dropped() int64
}

type StatsHandler struct {
	link     LinkStatus
	recorder RecorderStats
	started  time.Time

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates the diagnostics handler. rec may be nil.
func NewStatsHandler(l LinkStatus, rec RecorderStats) *StatsHandler {
	return &StatsHandler{link: l, recorder: rec, started: time.Now()}
}

type ComponentStats struct {
	Name        string `json:"name"`
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Memory      string `json:"memory"`
	Goroutines  int    `json:"goroutines"`
	Uptime      string `json:"uptime"`
}

type LinkStats struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
	link.Stats
}

type RecorderDTO struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
}

type StatsResponse struct {
	Diagnostics []ComponentStats `json:"diagnostics"`
	Link        LinkStats        `json:"link"`
	Recorder    *RecorderDTO     `json:"recorder,omitempty"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	diagnostics := h.gatherDiagnostics()
	h.mu.Unlock()

	resp := StatsResponse{
		Diagnostics: diagnostics,
		Link: LinkStats{
			State: h.link.State(),
			Stats: h.link.Stats(),
		},
	}
	if err := h.link.LastError(); err != nil {
		resp.Link.LastError = err.Error()
	}
	if h.recorder != nil {
		resp.Recorder = &RecorderDTO{
			Written: h.recorder.Written(),
			Dropped: h.recorder.Dropped(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() []ComponentStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}

	return []ComponentStats{{
		Name:        "Simulator",
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(h.maxMem),
		Memory:      humanize.IBytes(m.Sys),
		Goroutines:  runtime.NumGoroutine(),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	}}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
