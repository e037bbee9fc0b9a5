// Package journal keeps an SQLite record of conversion runs and of what
// happened to each region, so a failed or interrupted run can be inspected
// afterwards.
package journal

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rmmh/mcr2anvil/go/convert"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	world TEXT NOT NULL,
	workers INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	ok INTEGER
);
CREATE TABLE IF NOT EXISTS regions (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	dimension TEXT NOT NULL,
	path TEXT NOT NULL,
	converted INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	ok INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS regions_run ON regions(run_id);
`

var ErrNoRun = errors.New("journal: no run in progress")

// Run is one row of the runs table. Finished is the zero time for a run that
// never finished.
type Run struct {
	ID       int64
	World    string
	Workers  int
	Started  time.Time
	Finished time.Time
	OK       bool
}

// Region is one row of the regions table.
type Region struct {
	Dimension string
	Path      string
	Converted int
	Skipped   int
	Failed    int
	OK        bool
	Error     string
}

// Journal is a convert.Recorder backed by an SQLite file. It is safe for
// concurrent use.
type Journal struct {
	db  *sql.DB
	log *slog.Logger

	mu  sync.Mutex
	run int64
}

// Open creates or opens the journal database at path.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "journal: open %s", path)
	}
	// Workers record concurrently; one connection keeps sqlite from
	// returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "journal: create schema in %s", path)
	}
	return &Journal{db: db, log: log}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun starts a new run; regions recorded afterwards belong to it.
func (j *Journal) BeginRun(world string, workers int) (int64, error) {
	res, err := j.db.Exec("INSERT INTO runs (world, workers, started_at) VALUES (?, ?, ?)",
		world, workers, time.Now().UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "journal: begin run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "journal: begin run")
	}
	j.mu.Lock()
	j.run = id
	j.mu.Unlock()
	return id, nil
}

func (j *Journal) current() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.run
}

// RecordRegion implements convert.Recorder. Failures to write are logged.
func (j *Journal) RecordRegion(dimension string, res convert.RegionResult) {
	run := j.current()
	if run == 0 {
		j.log.Warn("journal: region finished outside of a run", "region", res.Path)
		return
	}
	msg := ""
	if res.Err != nil {
		msg = res.Err.Error()
	}
	_, err := j.db.Exec(`INSERT INTO regions
		(run_id, dimension, path, converted, skipped, failed, ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run, dimension, res.Path, res.Converted, res.Skipped, res.Failed, res.OK(), msg)
	if err != nil {
		j.log.Warn("journal: could not record region", "region", res.Path, "err", err)
	}
}

// FinishRun closes the current run.
func (j *Journal) FinishRun(ok bool) error {
	j.mu.Lock()
	run := j.run
	j.run = 0
	j.mu.Unlock()
	if run == 0 {
		return ErrNoRun
	}
	_, err := j.db.Exec("UPDATE runs SET finished_at = ?, ok = ? WHERE id = ?",
		time.Now().UnixMilli(), ok, run)
	return errors.Wrap(err, "journal: finish run")
}

// Runs lists every run, oldest first.
func (j *Journal) Runs() ([]Run, error) {
	rows, err := j.db.Query("SELECT id, world, workers, started_at, finished_at, ok FROM runs ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "journal: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		var ok sql.NullBool
		if err := rows.Scan(&r.ID, &r.World, &r.Workers, &started, &finished, &ok); err != nil {
			return nil, errors.Wrap(err, "journal: scan run")
		}
		r.Started = time.UnixMilli(started)
		if finished.Valid {
			r.Finished = time.UnixMilli(finished.Int64)
		}
		r.OK = ok.Valid && ok.Bool
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "journal: list runs")
}

// Regions lists the regions recorded for a run, sorted by dimension and path.
func (j *Journal) Regions(runID int64) ([]Region, error) {
	rows, err := j.db.Query(`SELECT dimension, path, converted, skipped, failed, ok, error
		FROM regions WHERE run_id = ? ORDER BY dimension, path`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "journal: list regions")
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var r Region
		if err := rows.Scan(&r.Dimension, &r.Path, &r.Converted, &r.Skipped, &r.Failed, &r.OK, &r.Error); err != nil {
			return nil, errors.Wrap(err, "journal: scan region")
		}
		regions = append(regions, r)
	}
	return regions, errors.Wrap(rows.Err(), "journal: list regions")
}
