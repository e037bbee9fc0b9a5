// Package convert migrates a world save from McRegion to Anvil region files,
// one dimension at a time, with the regions of each dimension spread over a
// worker pool.
package convert

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/rmmh/mcr2anvil/go/chunk"
	"github.com/rmmh/mcr2anvil/go/nbt"
	"github.com/rmmh/mcr2anvil/go/region"
)

var (
	ErrWorldNotFound  = errors.New("world not found")
	ErrNotDirectory   = errors.New("not a directory")
	ErrNotConvertible = errors.New("world is not in McRegion format")
)

// Stage labels sent to a Sink.
const (
	StageLabel      = "Converting level"
	StageScanning   = "scanning"
	StageConverting = "converting"
	StageDone       = "done"
)

type Options struct {
	// Workers is the region pool size. Zero or less converts sequentially.
	Workers int
	// Biomes fills the Anvil biome arrays; nil leaves them undetermined.
	Biomes   chunk.BiomeSource
	Logger   *slog.Logger
	Recorder Recorder
}

// Storage converts the worlds found under one base folder.
type Storage struct {
	baseDir string
	opts    Options
	log     *slog.Logger
}

func NewStorage(baseDir string, opts Options) *Storage {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Biomes == nil {
		opts.Biomes = chunk.Undetermined
	}
	return &Storage{baseDir: baseDir, opts: opts, log: log}
}

func (s *Storage) BaseDir() string { return s.baseDir }

func isDir(path string) error {
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.Wrap(ErrWorldNotFound, path)
	}
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if !st.IsDir() {
		return errors.Wrap(ErrNotDirectory, path)
	}
	return nil
}

func (s *Storage) worldDir(world string) (string, error) {
	if err := isDir(s.baseDir); err != nil {
		return "", err
	}
	dir := filepath.Join(s.baseDir, world)
	if err := isDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// IsConvertible reports whether the world's metadata says it is still stored
// as McRegion. It does not modify anything.
func (s *Storage) IsConvertible(world string) bool {
	_, root, err := readMetadata(filepath.Join(s.baseDir, world))
	return err == nil && storageVersion(root) == VersionMcRegion
}

// Convert writes an Anvil copy of every McRegion file in the world, then
// backs up level.dat as level.dat_mcr and marks the world as Anvil. The .mcr
// files are left in place.
//
// Regions or chunks that fail are logged, counted in the Summary, and left
// for a later run to retry; only precondition failures and a failure to
// write the new level.dat are returned as errors.
func (s *Storage) Convert(world string, sink Sink) (Summary, error) {
	if sink == nil {
		sink = nopSink{}
	}
	var sum Summary

	dir, err := s.worldDir(world)
	if err != nil {
		return sum, err
	}
	dims, err := dimensions(dir)
	if err != nil {
		return sum, err
	}
	total := countRegions(dims)

	sink.StageStart(StageLabel)
	sink.Stage(StageScanning)
	sink.StagePercent(0)

	name, root, err := readMetadata(dir)
	if err != nil {
		return sum, errors.Wrapf(ErrNotConvertible, "%s: %v", world, err)
	}
	if v := storageVersion(root); v != VersionMcRegion {
		return sum, errors.Wrapf(ErrNotConvertible, "%s has storage version %d", world, v)
	}

	log := s.log.With("world", world)
	log.Info("converting world", "regions", total, "workers", s.opts.Workers)

	sink.Stage(StageConverting)
	progress := NewProgress(total, sink)
	sched := &Scheduler{Workers: s.opts.Workers, Log: log, Recorder: s.opts.Recorder}
	for _, d := range dims {
		sum.add(sched.Run(d, s.opts.Biomes, progress))
	}

	setStorageVersion(root, VersionAnvil)
	if err := s.commitMetadata(log, dir, name, root); err != nil {
		return sum, err
	}

	sink.Stage(StageDone)
	sink.StagePercent(100)
	log.Info("world converted", "converted", sum.Converted, "skipped", sum.Skipped,
		"failed_chunks", sum.FailedChunks, "failed_regions", sum.FailedRegions)
	return sum, nil
}

// commitMetadata moves level.dat aside as level.dat_mcr and writes root as
// the new level.dat. A backup that cannot be made is only a warning.
func (s *Storage) commitMetadata(log *slog.Logger, dir, name string, root *nbt.Compound) error {
	level := filepath.Join(dir, levelFile)
	backup := filepath.Join(dir, levelBackup)
	if _, err := os.Stat(level); err == nil {
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove old backup", "path", backup, "err", err)
		}
		if err := os.Rename(level, backup); err != nil {
			log.Warn("could not back up level.dat", "err", err)
		}
	} else {
		log.Warn("no level.dat to back up", "err", err)
	}

	tmp := filepath.Join(dir, levelNew)
	if err := nbt.WriteCompressed(tmp, name, root); err != nil {
		return errors.Wrap(err, "write level.dat")
	}
	return errors.Wrap(os.Rename(tmp, level), "replace level.dat")
}

// Reset undoes a previous conversion: every .mca file in the world's
// dimensions is deleted and level.dat_mcr, if present, replaces level.dat.
// A world with neither a level.dat_mcr backup nor McRegion metadata was never
// converted and is left untouched.
func (s *Storage) Reset(world string) error {
	dir, err := s.worldDir(world)
	if err != nil {
		return err
	}
	backup := filepath.Join(dir, levelBackup)
	_, statErr := os.Stat(backup)
	hasBackup := statErr == nil
	if !hasBackup && !s.IsConvertible(world) {
		return errors.Wrapf(ErrNotConvertible, "%s: no %s, refusing to reset", world, levelBackup)
	}
	dims, err := dimensions(dir)
	if err != nil {
		return err
	}
	removed := 0
	for _, d := range dims {
		files, err := listRegions(filepath.Join(d.Dir, "region"), region.AnvilExt)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := os.Remove(f); err != nil {
				return errors.Wrapf(err, "remove %s", f)
			}
			removed++
		}
	}

	restored := false
	if hasBackup {
		if err := os.Rename(backup, filepath.Join(dir, levelFile)); err != nil {
			return errors.Wrap(err, "restore level.dat")
		}
		restored = true
	}
	s.log.Info("reset world", "world", world, "removed", removed, "restored_level", restored)
	return nil
}
