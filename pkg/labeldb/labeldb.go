// Package labeldb is the sqlite index of labeling runs, record builds and
// blur sweeps, so that "which clips have I labeled, and when" has a better
// answer than ls -lt over the dataset folder.
package labeldb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

const Filename = "boxlab.sqlite"

type DB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open opens (or creates) the index at root/boxlab.sqlite.
func Open(log logs.Log, root string) (*DB, error) {
	if err := os.MkdirAll(root, 0777); err != nil {
		return nil, fmt.Errorf("creating index root '%v': %w", root, err)
	}
	path := filepath.Join(root, Filename)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(path), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database %v: %w", path, err)
	}
	return &DB{Log: log, DB: db}, nil
}

// OpenAdvisory opens the index, returning nil with a warning when it can't
// be opened (read-only dataset folder, etc). The index is advisory: every
// method on a nil *DB is a no-op, so tools record runs unconditionally and
// never fail a labeling session over bookkeeping.
func OpenAdvisory(log logs.Log, root string) *DB {
	db, err := Open(log, root)
	if err != nil {
		log.Warnf("Run index unavailable: %v", err)
		return nil
	}
	return db
}

func (d *DB) Close() {
	if d == nil {
		return
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// AddRun records one labeling pass over a video. tracker is empty for
// tools that don't track.
func (d *DB) AddRun(video, tool, tracker string, scale float64, frames int, classes []string) {
	if d == nil {
		return
	}
	run := Run{
		CreatedAt: dbh.MakeIntTime(time.Now()),
		Video:     video,
		Tool:      tool,
		Tracker:   tracker,
		Scale:     scale,
		Frames:    frames,
		Classes:   strings.Join(classes, ","),
	}
	if err := d.DB.Create(&run).Error; err != nil {
		d.Log.Warnf("Run index: recording run failed: %v", err)
	}
}

// AddBuild records one dataset conversion.
func (d *DB) AddBuild(folder string, shards, records, negatives int, bytes int64) {
	if d == nil {
		return
	}
	build := Build{
		CreatedAt: dbh.MakeIntTime(time.Now()),
		Folder:    folder,
		Shards:    shards,
		Records:   records,
		Negatives: negatives,
		Bytes:     bytes,
	}
	if err := d.DB.Create(&build).Error; err != nil {
		d.Log.Warnf("Run index: recording build failed: %v", err)
	}
}

// AddSweeps records one blur sweep's measurements as a single batch.
func (d *DB) AddSweeps(rows []Sweep) {
	if d == nil || len(rows) == 0 {
		return
	}
	now := dbh.MakeIntTime(time.Now())
	for i := range rows {
		rows[i].CreatedAt = now
	}
	if err := d.DB.Create(&rows).Error; err != nil {
		d.Log.Warnf("Run index: recording sweep failed: %v", err)
	}
}

// Runs returns all runs, newest first.
func (d *DB) Runs() ([]Run, error) {
	runs := []Run{}
	if d == nil {
		return runs, nil
	}
	return runs, d.DB.Order("id DESC").Find(&runs).Error
}

// Builds returns all builds, newest first.
func (d *DB) Builds() ([]Build, error) {
	builds := []Build{}
	if d == nil {
		return builds, nil
	}
	return builds, d.DB.Order("id DESC").Find(&builds).Error
}

// SweepResults returns the sweep rows for one movie, ordered by kernel
// then frame.
func (d *DB) SweepResults(movie string) ([]Sweep, error) {
	sweeps := []Sweep{}
	if d == nil {
		return sweeps, nil
	}
	return sweeps, d.DB.Where("movie = ?", movie).Order("kernel, frame").Find(&sweeps).Error
}
