package convert

import (
	"math"
	"sync/atomic"

	"github.com/rmmh/mcr2anvil/go/region"
)

// Sink receives coarse progress for a run. Calls may come from several
// workers at once and percentages are not guaranteed to arrive in order.
type Sink interface {
	StageStart(label string)
	Stage(label string)
	StagePercent(pct int)
}

// MultiSink fans every update out to each of its sinks.
type MultiSink []Sink

func (m MultiSink) StageStart(label string) {
	for _, s := range m {
		s.StageStart(label)
	}
}

func (m MultiSink) Stage(label string) {
	for _, s := range m {
		s.Stage(label)
	}
}

func (m MultiSink) StagePercent(pct int) {
	for _, s := range m {
		s.StagePercent(pct)
	}
}

type nopSink struct{}

func (nopSink) StageStart(string) {}
func (nopSink) Stage(string)      {}
func (nopSink) StagePercent(int)  {}

// Progress tracks finished regions across every dimension of one run. The
// estimate treats each region as a full 32 rows of chunks.
type Progress struct {
	total     int64
	completed atomic.Int64
	sink      Sink
}

func NewProgress(total int, sink Sink) *Progress {
	if sink == nil {
		sink = nopSink{}
	}
	return &Progress{total: int64(total), sink: sink}
}

func (p *Progress) Total() int { return int(p.total) }

func (p *Progress) Completed() int { return int(p.completed.Load()) }

// Percent is the estimate with rows rows of the current region done.
func (p *Progress) Percent(rows int) int {
	return p.percentAt(p.completed.Load(), rows)
}

func (p *Progress) percentAt(completed int64, rows int) int {
	if p.total <= 0 {
		return 100
	}
	slots := int64(region.Width * region.Width)
	done := float64(completed*slots + int64(rows)*region.Width)
	pct := int(math.Round(100 * done / float64(p.total*slots)))
	return min(max(pct, 0), 100)
}

// RegionDone counts one region as finished.
func (p *Progress) RegionDone() int {
	return int(p.completed.Add(1))
}

func (p *Progress) report(pct int) {
	p.sink.StagePercent(pct)
}
