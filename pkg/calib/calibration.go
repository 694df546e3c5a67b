package calib

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/chewxy/math32"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

// DefaultFilename is where cmd/calibrate writes its result.
const DefaultFilename = "calib.json"

// Calibration is the camera's intrinsic matrix and lens distortion, plus
// the resolution it was calibrated at.
type Calibration struct {
	CameraMatrix [3][3]float64 `json:"cameraMatrix"`
	DistCoeffs   []float64     `json:"distCoeffs"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	RMS          float64       `json:"rms"`
}

func Load(filename string) (*Calibration, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	calib := &Calibration{}
	if err := json.Unmarshal(b, calib); err != nil {
		return nil, fmt.Errorf("parsing %v: %w", filename, err)
	}
	return calib, nil
}

func (c *Calibration) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// CameraMatrixMat returns the camera matrix as a 3x3 CV_64F Mat. The caller
// closes it.
func (c *Calibration) CameraMatrixMat() gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			m.SetDoubleAt(r, col, c.CameraMatrix[r][col])
		}
	}
	return m
}

// DistCoeffsMat returns the distortion coefficients as a 1xN CV_64F Mat.
// The caller closes it.
func (c *Calibration) DistCoeffsMat() gocv.Mat {
	m := gocv.NewMatWithSize(1, len(c.DistCoeffs), gocv.MatTypeCV64F)
	for i, v := range c.DistCoeffs {
		m.SetDoubleAt(0, i, v)
	}
	return m
}

// UndistortPoint maps a pixel to normalized pinhole coordinates
// ((px-cx)/fx, (py-cy)/fy). The distortion coefficients are ignored, which
// stays within a fraction of a pixel of cv::undistortPoints on the webcams
// this gets used with.
func (c *Calibration) UndistortPoint(p boxes.Point) boxes.Point {
	fx := float32(c.CameraMatrix[0][0])
	fy := float32(c.CameraMatrix[1][1])
	cx := float32(c.CameraMatrix[0][2])
	cy := float32(c.CameraMatrix[1][2])
	return boxes.Point{
		X: (p.X - cx) / fx,
		Y: (p.Y - cy) / fy,
	}
}

// AngleTo returns the signed horizontal and vertical angles, in degrees,
// from the optical axis to a pixel. Positive x is to the right of center,
// positive y below it.
func (c *Calibration) AngleTo(p boxes.Point) (float32, float32) {
	n := c.UndistortPoint(p)
	return math32.Atan2(n.X, 1) * 180 / math32.Pi, math32.Atan2(n.Y, 1) * 180 / math32.Pi
}

// UndistortFrame warps a frame through the calibration, with alpha 1 so
// every original pixel stays visible.
func (c *Calibration) UndistortFrame(frame gocv.Mat, dst *gocv.Mat) {
	cameraMatrix := c.CameraMatrixMat()
	defer cameraMatrix.Close()
	dist := c.DistCoeffsMat()
	defer dist.Close()
	size := image.Pt(frame.Cols(), frame.Rows())
	newMatrix, _ := gocv.GetOptimalNewCameraMatrixWithParams(cameraMatrix, dist, size, 1, size, false)
	defer newMatrix.Close()
	gocv.Undistort(frame, dst, cameraMatrix, dist, newMatrix)
}
