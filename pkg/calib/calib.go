// Package calib calibrates the robot's camera from chessboard observations
// and turns pixel coordinates into angles off the optical axis.
package calib

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

const (
	PatternColumns = 9  // inner corners along a chessboard row
	PatternRows    = 6  // inner corners along a chessboard column
	SquareSize     = 25 // mm

	MinFrames      = 10 // fewest observations we will calibrate from
	MaxFrames      = 30 // stop collecting once we have this many
	SampleInterval = 3 * time.Second
)

// Observation is one accepted chessboard sighting: the detected corners in
// image coordinates, chessboard order.
type Observation struct {
	Corners []gocv.Point2f
}

// patternPoints is the chessboard's corner grid in world coordinates
// (z = 0, mm).
func patternPoints() []gocv.Point3f {
	pts := make([]gocv.Point3f, 0, PatternColumns*PatternRows)
	for y := 0; y < PatternRows; y++ {
		for x := 0; x < PatternColumns; x++ {
			pts = append(pts, gocv.Point3f{X: float32(x * SquareSize), Y: float32(y * SquareSize), Z: 0})
		}
	}
	return pts
}

// FindCorners looks for the chessboard in a frame. When found, the corners
// are drawn onto the frame and returned in chessboard order.
func FindCorners(frame gocv.Mat) ([]gocv.Point2f, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	corners := gocv.NewMat()
	defer corners.Close()
	found := gocv.FindChessboardCorners(gray, image.Pt(PatternColumns, PatternRows), &corners)
	if !found || corners.Rows() != PatternColumns*PatternRows {
		return nil, false
	}
	gocv.DrawChessboardCorners(&frame, image.Pt(PatternColumns, PatternRows), corners, found)

	pts := make([]gocv.Point2f, corners.Rows())
	for i := range pts {
		v := corners.GetVecfAt(i, 0)
		pts[i] = gocv.Point2f{X: v[0], Y: v[1]}
	}
	return pts, true
}

// Calibrate runs a single camera calibration over all the observations.
func Calibrate(obs []Observation, width, height int) (*Calibration, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations to calibrate from")
	}
	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()
	pattern := patternPoints()
	for _, ob := range obs {
		opv := gocv.NewPoint3fVectorFromPoints(pattern)
		objectPoints.Append(opv)
		opv.Close()
		ipv := gocv.NewPoint2fVectorFromPoints(ob.Corners)
		imagePoints.Append(ipv)
		ipv.Close()
	}

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()
	rms := gocv.CalibrateCamera(objectPoints, imagePoints, image.Pt(width, height),
		&cameraMatrix, &distCoeffs, &rvecs, &tvecs, 0)

	calib := &Calibration{Width: width, Height: height, RMS: rms}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			calib.CameraMatrix[r][c] = cameraMatrix.GetDoubleAt(r, c)
		}
	}
	// OpenCV emits the distortion coefficients as a row or column vector
	// depending on version.
	for i := 0; i < distCoeffs.Total(); i++ {
		if distCoeffs.Rows() == 1 {
			calib.DistCoeffs = append(calib.DistCoeffs, distCoeffs.GetDoubleAt(0, i))
		} else {
			calib.DistCoeffs = append(calib.DistCoeffs, distCoeffs.GetDoubleAt(i, 0))
		}
	}
	return calib, nil
}
