// Package status reports conversion progress: to the log, over HTTP, and as
// Prometheus metrics.
package status

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmmh/mcr2anvil/go/convert"
)

// Snapshot is the latest known state of a run.
type Snapshot struct {
	Stage   string `json:"stage"`
	Label   string `json:"label"`
	Percent int    `json:"percent"`
	Done    bool   `json:"done"`
}

// Tracker is a convert.Sink that remembers the most recent update.
type Tracker struct {
	mu sync.RWMutex
	s  Snapshot
}

func (t *Tracker) StageStart(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s = Snapshot{Label: label}
}

func (t *Tracker) Stage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Stage = stage
	t.s.Done = stage == convert.StageDone
}

func (t *Tracker) StagePercent(pct int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Percent = pct
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.s
}

// Console is a convert.Sink that logs progress, at most once per Interval.
// 100% is always logged, once.
type Console struct {
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
	pct  int
}

func NewConsole(log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{log: log, interval: time.Second, now: time.Now, pct: -1}
}

func (c *Console) StageStart(label string) {
	c.log.Info(label)
}

func (c *Console) Stage(stage string) {
	c.log.Debug("stage", "stage", stage)
}

func (c *Console) StagePercent(pct int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if pct == c.pct || (pct < 100 && now.Sub(c.last) < c.interval) {
		return
	}
	c.last = now
	c.pct = pct
	c.log.Info(fmt.Sprintf("Converting... %d%%", pct))
}
