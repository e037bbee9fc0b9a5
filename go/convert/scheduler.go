package convert

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/rmmh/mcr2anvil/go/chunk"
	"github.com/rmmh/mcr2anvil/go/region"
)

// Recorder is told about every region task once it finishes. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordRegion(dimension string, res RegionResult)
}

// MultiRecorder passes each result to all of its recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordRegion(dimension string, res RegionResult) {
	for _, r := range m {
		r.RecordRegion(dimension, res)
	}
}

// Summary totals a run.
type Summary struct {
	Regions       int
	FailedRegions int
	Converted     int
	Skipped       int
	FailedChunks  int
}

func (s *Summary) add(o Summary) {
	s.Regions += o.Regions
	s.FailedRegions += o.FailedRegions
	s.Converted += o.Converted
	s.Skipped += o.Skipped
	s.FailedChunks += o.FailedChunks
}

type tally struct {
	regions, failedRegions, converted, skipped, failedChunks atomic.Int64
}

func (t *tally) add(res RegionResult) {
	t.regions.Add(1)
	if !res.OK() {
		t.failedRegions.Add(1)
	}
	t.converted.Add(int64(res.Converted))
	t.skipped.Add(int64(res.Skipped))
	t.failedChunks.Add(int64(res.Failed))
}

func (t *tally) summary() Summary {
	return Summary{
		Regions:       int(t.regions.Load()),
		FailedRegions: int(t.failedRegions.Load()),
		Converted:     int(t.converted.Load()),
		Skipped:       int(t.skipped.Load()),
		FailedChunks:  int(t.failedChunks.Load()),
	}
}

// Scheduler runs the region tasks of one dimension.
type Scheduler struct {
	// Workers is the pool size; zero or less converts sequentially on the
	// calling goroutine.
	Workers  int
	Log      *slog.Logger
	Recorder Recorder
}

// Run converts every region of dim and returns once all of them finished.
// Failures are logged and counted, never returned.
func (s *Scheduler) Run(dim Dimension, biomes chunk.BiomeSource, progress *Progress) Summary {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("dimension", dim.Name)

	var t tally
	do := func(src string) {
		res := s.runTask(log, &task{
			src:      src,
			dst:      region.AnvilPath(src),
			biomes:   biomes,
			progress: progress,
			log:      log,
		})
		t.add(res)
		if s.Recorder != nil {
			s.Recorder.RecordRegion(dim.Name, res)
		}
	}

	if s.Workers <= 0 {
		for _, src := range dim.Regions {
			do(src)
		}
	} else {
		work := make(chan string, s.Workers)
		var wg sync.WaitGroup
		for i := 0; i < s.Workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for src := range work {
					do(src)
				}
			}()
		}
		for _, src := range dim.Regions {
			work <- src
		}
		close(work)
		wg.Wait()
	}

	progress.report(progress.percentAt(progress.total, 0))
	return t.summary()
}

// runTask contains a panicking task so its siblings keep going.
func (s *Scheduler) runTask(log *slog.Logger, t *task) (res RegionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = RegionResult{Path: t.src, Dest: t.dst, Err: errors.Errorf("panic: %v", r)}
			res.Coord, res.HasCoord = region.ParseName(t.src)
			log.Warn("region conversion panicked", "region", t.src, "err", res.Err)
		}
	}()
	res = t.run()
	if res.Err != nil {
		log.Warn("region conversion failed", "region", t.src, "err", res.Err)
	} else {
		log.Debug("region converted", "region", t.src,
			"converted", res.Converted, "skipped", res.Skipped, "failed", res.Failed,
			"elapsed", res.Elapsed)
	}
	return res
}
