package labeldb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE run(
			id INTEGER PRIMARY KEY,
			created_at INT NOT NULL,
			video TEXT NOT NULL,
			tool TEXT NOT NULL,
			tracker TEXT,
			scale REAL,
			frames INT NOT NULL,
			classes TEXT
		);

		CREATE TABLE build(
			id INTEGER PRIMARY KEY,
			created_at INT NOT NULL,
			folder TEXT NOT NULL,
			shards INT NOT NULL,
			records INT NOT NULL,
			negatives INT NOT NULL,
			bytes INT NOT NULL
		);

		CREATE TABLE sweep(
			id INTEGER PRIMARY KEY,
			created_at INT NOT NULL,
			movie TEXT NOT NULL,
			kernel INT NOT NULL,
			frame INT NOT NULL,
			detections INT NOT NULL,
			weighted REAL NOT NULL
		);
		CREATE INDEX idx_sweep_movie ON sweep (movie);
	`))

	return migs
}
