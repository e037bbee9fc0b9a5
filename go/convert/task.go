package convert

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/rmmh/mcr2anvil/go/chunk"
	"github.com/rmmh/mcr2anvil/go/nbt"
	"github.com/rmmh/mcr2anvil/go/region"
)

// RegionResult describes one finished region task.
type RegionResult struct {
	Path  string // the .mcr file
	Dest  string // the .mca file
	Coord region.Coord
	// HasCoord is false when the file name does not follow r.<x>.<z>.mcr.
	HasCoord  bool
	Converted int
	Skipped   int // already present in the destination
	Failed    int
	Elapsed   time.Duration
	Err       error // set when the region as a whole failed
}

func (r RegionResult) OK() bool { return r.Err == nil }

type task struct {
	src, dst string
	biomes   chunk.BiomeSource
	progress *Progress
	log      *slog.Logger
}

// run converts every chunk of the source region that the destination does not
// already hold in readable form. The region only counts as done once both files closed cleanly.
func (t *task) run() (res RegionResult) {
	start := time.Now()
	res = RegionResult{Path: t.src, Dest: t.dst}
	res.Coord, res.HasCoord = region.ParseName(t.src)
	defer func() { res.Elapsed = time.Since(start) }()

	log := t.log.With("region", t.src)
	if !res.HasCoord {
		log.Warn("region file name has no coordinates")
	}

	src, err := region.OpenLegacy(t.src)
	if err != nil {
		res.Err = err
		return res
	}
	dst, err := region.OpenOrCreate(t.dst)
	if err != nil {
		src.Close()
		res.Err = err
		return res
	}
	open := true
	defer func() {
		if open {
			src.Close()
			dst.Close()
		}
	}()

	completed := t.progress.completed.Load()
	base := t.progress.percentAt(completed, 0)
	for x := 0; x < region.Width; x++ {
		for z := 0; z < region.Width; z++ {
			if !src.HasChunk(x, z) {
				continue
			}
			if dst.HasChunk(x, z) {
				err := dst.Verify(x, z)
				if err == nil {
					res.Skipped++
					continue
				}
				log.Warn("rewriting unreadable chunk", "x", x, "z", z, "err", err)
			}
			if err := t.convertChunk(log, res, src, dst, x, z); err != nil {
				log.Warn("skipping chunk", "x", x, "z", z, "err", err)
				res.Failed++
				continue
			}
			res.Converted++
		}
		if pct := t.progress.percentAt(completed, x+1); pct > base {
			t.progress.report(pct)
		}
	}

	open = false
	srcErr := src.Close()
	dstErr := dst.Close()
	switch {
	case dstErr != nil:
		res.Err = dstErr
	case srcErr != nil:
		res.Err = srcErr
	default:
		t.progress.RegionDone()
	}
	return res
}

func (t *task) convertChunk(log *slog.Logger, res RegionResult, src, dst *region.Container, x, z int) error {
	r, err := src.ChunkReader(x, z)
	if err != nil {
		return err
	}
	name, root, err := nbt.Decode(r)
	r.Close()
	if err != nil {
		return err
	}

	old, err := chunk.LoadLegacy(root.Compound("Level"))
	if err != nil {
		return err
	}
	if res.HasCoord {
		wantX, wantZ := res.Coord.X*region.Width+x, res.Coord.Z*region.Width+z
		if int(old.X) != wantX || int(old.Z) != wantZ {
			log.Warn("chunk is stored in the wrong slot",
				"x", x, "z", z, "pos", fmt.Sprintf("%d,%d", old.X, old.Z))
		}
	}

	level := nbt.NewCompound()
	chunk.ConvertToAnvil(old, level, t.biomes)
	out := nbt.NewCompound()
	out.Set("Level", level)
	buf, err := nbt.Marshal(name, out)
	if err != nil {
		return err
	}

	w, err := dst.ChunkWriter(x, z)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return errors.Wrap(err, "write chunk")
	}
	return w.Close()
}
