package labeldb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestIndexRoundTrip(t *testing.T) {
	root := t.TempDir()
	db, err := Open(logs.NewTestingLog(t), root)
	require.NoError(t, err)

	db.AddRun("clips/a.mp4", "trackboxes", "csrt", 0.5, 120, []string{"w", "c"})
	db.AddRun("clips/b.mp4", "labelframes", "", 1, 40, []string{"w"})
	db.AddBuild("/data/train", 10, 1200, 55, 1<<20)
	db.AddSweeps([]Sweep{
		{Movie: "clips/a.mp4", Kernel: 1, Frame: 0, Detections: 3, Weighted: 2.5},
		{Movie: "clips/a.mp4", Kernel: 3, Frame: 0, Detections: 2, Weighted: 1.4},
		{Movie: "clips/other.mp4", Kernel: 1, Frame: 0, Detections: 1, Weighted: 0.9},
	})

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first
	require.Equal(t, "clips/b.mp4", runs[0].Video)
	require.Equal(t, "trackboxes", runs[1].Tool)
	require.Equal(t, "csrt", runs[1].Tracker)
	require.Equal(t, "w,c", runs[1].Classes)
	require.False(t, runs[0].CreatedAt.IsZero())

	builds, err := db.Builds()
	require.NoError(t, err)
	require.Len(t, builds, 1)
	require.Equal(t, int64(1<<20), builds[0].Bytes)
	require.Equal(t, 55, builds[0].Negatives)

	sweeps, err := db.SweepResults("clips/a.mp4")
	require.NoError(t, err)
	require.Len(t, sweeps, 2)
	require.Equal(t, 1, sweeps[0].Kernel)
	require.Equal(t, 3, sweeps[1].Kernel)

	// Reopen: data persists and migrations are idempotent.
	db.Close()
	db2, err := Open(logs.NewTestingLog(t), root)
	require.NoError(t, err)
	defer db2.Close()
	runs, err = db2.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestNilIndexIsNoOp(t *testing.T) {
	var db *DB
	db.AddRun("x", "y", "", 1, 0, nil)
	db.AddBuild("f", 1, 0, 0, 0)
	db.AddSweeps([]Sweep{{}})
	runs, err := db.Runs()
	require.NoError(t, err)
	require.Empty(t, runs)
	builds, err := db.Builds()
	require.NoError(t, err)
	require.Empty(t, builds)
	db.Close()
}

func TestOpenAdvisoryBadRoot(t *testing.T) {
	// A file sits where the index root should be.
	root := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0644))
	db := OpenAdvisory(logs.NewTestingLog(t), root)
	require.Nil(t, db)
}
