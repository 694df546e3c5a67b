package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/calib"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// calibrate collects chessboard observations from the chosen input, picks
// the best RANSAC calibration, and saves it.
func calibrate(logger logs.Log, videoPath, images, output string) *calib.Calibration {
	win := gocv.NewWindow("calibrate")
	defer win.Close()
	show := func(frame gocv.Mat, accepted int) bool {
		draw.HUD(&frame, []string{fmt.Sprintf("calibration frames: %v / %v", accepted, calib.MaxFrames)})
		win.IMShow(frame)
		return win.WaitKey(1) != 'q'
	}

	var obs []calib.Observation
	var width, height int
	var err error
	if images != "" {
		obs, width, height, err = calib.CollectFromImages(logger, images, show)
	} else {
		var video *videox.Video
		video, err = openStream(videoPath)
		check(err)
		defer video.Close()
		obs, width, height, err = calib.CollectFromVideo(logger, video, show)
	}
	check(err)

	cal, err := calib.Ransac(logger, obs, width, height, nil)
	check(err)
	logger.Infof("Camera matrix: %v", cal.CameraMatrix)
	logger.Infof("Distortion coefficients: %v", cal.DistCoeffs)
	check(cal.Save(output))
	logger.Infof("Saved %v", output)
	return cal
}

func openStream(videoPath string) (*videox.Video, error) {
	if videoPath != "" {
		return videox.OpenVideo(videoPath)
	}
	return videox.OpenCamera(0)
}

// previewStream shows each frame next to its undistorted version until q.
func previewStream(cal *calib.Calibration, video *videox.Video) {
	winOrig := gocv.NewWindow("original")
	defer winOrig.Close()
	winWarp := gocv.NewWindow("undistorted")
	defer winWarp.Close()
	img := gocv.NewMat()
	defer img.Close()
	warped := gocv.NewMat()
	defer warped.Close()
	for {
		if !video.Read(&img) {
			return
		}
		if img.Empty() {
			continue
		}
		cal.UndistortFrame(img, &warped)
		winOrig.IMShow(img)
		winWarp.IMShow(warped)
		if winWarp.WaitKey(1) == 'q' {
			return
		}
	}
}

// previewImages cycles through the folder, a second per image, until q.
func previewImages(cal *calib.Calibration, folder string) {
	winOrig := gocv.NewWindow("original")
	defer winOrig.Close()
	winWarp := gocv.NewWindow("undistorted")
	defer winWarp.Close()
	warped := gocv.NewMat()
	defer warped.Close()
	for {
		entries, err := os.ReadDir(folder)
		check(err)
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			img := gocv.IMRead(filepath.Join(folder, entry.Name()), gocv.IMReadColor)
			if img.Empty() {
				img.Close()
				continue
			}
			cal.UndistortFrame(img, &warped)
			winOrig.IMShow(img)
			winWarp.IMShow(warped)
			quit := winWarp.WaitKey(1000) == 'q'
			img.Close()
			if quit {
				return
			}
		}
	}
}

// largestBlob returns the bounding box of the mask's largest connected
// component.
func largestBlob(mask gocv.Mat) (boxes.Box, bool) {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()
	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	// Row 0 is the background component.
	best := 0
	bestArea := int32(0)
	for i := 1; i < n; i++ {
		if area := stats.GetIntAt(i, 4); area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best == 0 {
		return boxes.Box{}, false
	}
	return boxes.Box{
		X: float32(stats.GetIntAt(best, 0)),
		Y: float32(stats.GetIntAt(best, 1)),
		W: float32(stats.GetIntAt(best, 2)),
		H: float32(stats.GetIntAt(best, 3)),
	}, true
}

// aimLoop finds the orange blob in each frame and logs the signed angles
// from the optical axis to its center.
func aimLoop(logger logs.Log, cal *calib.Calibration, video *videox.Video) {
	win := gocv.NewWindow("aim")
	defer win.Close()
	img := gocv.NewMat()
	defer img.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	hsv := gocv.NewMat()
	defer hsv.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	for {
		if !video.Read(&img) {
			return
		}
		if img.Empty() {
			continue
		}
		gocv.Blur(img, &blurred, image.Pt(11, 11))
		gocv.CvtColor(blurred, &hsv, gocv.ColorBGRToHSV)
		gocv.InRangeWithScalar(hsv, gocv.NewScalar(13, 153, 101, 0), gocv.NewScalar(33, 255, 255, 0), &mask)

		draw.CenterLines(&img, image.Pt(img.Cols()/2, img.Rows()/2), draw.Green)
		if blob, ok := largestBlob(mask); ok {
			gocv.Rectangle(&img, blob.ImageRect(), draw.Yellow, 2)
			center := blob.Center()
			hAngle, vAngle := cal.AngleTo(center)
			draw.Label(&img, fmt.Sprintf("%+.1f, %+.1f deg", hAngle, vAngle), image.Pt(int(blob.X), int(blob.Y)-5), draw.Yellow)
			logger.Infof("Blob at %.0f,%.0f: %+.2f deg horizontal, %+.2f deg vertical", center.X, center.Y, hAngle, vAngle)
		}
		win.IMShow(img)
		if win.WaitKey(1) == 'q' {
			return
		}
	}
}

func main() {
	parser := argparse.NewParser("calibrate", "Calibrate the camera from chessboard frames (9x6 inner corners, 25 mm squares) and preview the result")
	videoPath := parser.String("v", "video", &argparse.Options{Help: "Video to read calibration frames from", Required: false, Default: ""})
	camera := parser.Flag("c", "camera", &argparse.Options{Help: "Collect frames from camera 0", Required: false})
	images := parser.String("i", "images", &argparse.Options{Help: "Folder of calibration images", Required: false, Default: ""})
	output := parser.String("o", "output", &argparse.Options{Help: "Calibration file", Required: false, Default: calib.DefaultFilename})
	aim := parser.Flag("", "aim", &argparse.Options{Help: "Aim readout: find the orange blob and log the angles to it (reuses an existing calibration file)", Required: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	sources := 0
	for _, chosen := range []bool{*videoPath != "", *camera, *images != ""} {
		if chosen {
			sources++
		}
	}
	if sources != 1 {
		check(fmt.Errorf("pick exactly one of --video, --camera or --images"))
	}

	var cal *calib.Calibration
	if *aim {
		if c, err := calib.Load(*output); err == nil {
			logger.Infof("Loaded %v (RMS %.4f)", *output, c.RMS)
			cal = c
		}
	}
	if cal == nil {
		cal = calibrate(logger, *videoPath, *images, *output)
	}

	if *aim {
		if *images != "" {
			check(fmt.Errorf("--aim needs --video or --camera"))
		}
		video, err := openStream(*videoPath)
		check(err)
		defer video.Close()
		aimLoop(logger, cal, video)
		return
	}

	if *images != "" {
		previewImages(cal, *images)
		return
	}
	video, err := openStream(*videoPath)
	check(err)
	defer video.Close()
	previewStream(cal, video)
}
