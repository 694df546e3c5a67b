package labeldb

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Run is one labeling pass over a video (trackboxes or labelframes).
type Run struct {
	BaseModel
	CreatedAt dbh.IntTime `json:"createdAt"`
	Video     string      `json:"video"`
	Tool      string      `json:"tool"`
	Tracker   string      `json:"tracker"` // empty when the tool doesn't track
	Scale     float64     `json:"scale"`
	Frames    int         `json:"frames"`  // frames with saved labels
	Classes   string      `json:"classes"` // comma separated
}

// Build is one dataset conversion (makerecords).
type Build struct {
	BaseModel
	CreatedAt dbh.IntTime `json:"createdAt"`
	Folder    string      `json:"folder"`
	Shards    int         `json:"shards"`
	Records   int         `json:"records"`
	Negatives int         `json:"negatives"`
	Bytes     int64       `json:"bytes"`
}

// Sweep is one (kernel, frame) measurement of a blur-robustness sweep.
type Sweep struct {
	BaseModel
	CreatedAt  dbh.IntTime `json:"createdAt"`
	Movie      string      `json:"movie"`
	Kernel     int         `json:"kernel"` // Gaussian kernel size (odd), 0 = unblurred
	Frame      int         `json:"frame"`
	Detections int         `json:"detections"`
	Weighted   float64     `json:"weighted"` // sum of detection confidences
}
