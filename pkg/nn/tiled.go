package nn

import (
	"image"
	"runtime"

	"github.com/bmharper/tiledinference"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

// minTilePadding is the least overlap between adjacent tiles, so that an
// object straddling a seam is wholly inside at least one tile.
const minTilePadding = 32

// TiledInference splits a frame that is larger than the model input into
// overlapping tiles, runs the detector on each tile, and merges duplicate
// detections across tile seams. On a frame no larger than the model input
// it degenerates to a single DetectFrame call, so it is safe to use on any
// frame.
func TiledInference(det Detector, img gocv.Mat, nThreads int) ([]Detection, error) {
	inputSize := det.InputSize()
	frameWidth := img.Cols()
	frameHeight := img.Rows()
	tiling := tiledinference.MakeTiling(frameWidth, frameHeight, inputSize.X, inputSize.Y, minTilePadding)
	numTiles := tiling.NumX * tiling.NumY
	if nThreads <= 0 {
		nThreads = runtime.NumCPU()
	}
	if nThreads > numTiles {
		nThreads = numTiles
	}

	tileQueue := make(chan tile, numTiles)
	for ty := 0; ty < tiling.NumY; ty++ {
		for tx := 0; tx < tiling.NumX; tx++ {
			tileQueue <- tile{x: tx, y: ty}
		}
	}
	close(tileQueue)

	// Workers send per-tile results back over the channel, so only this
	// goroutine touches the combined slices.
	results := make(chan tileResult, numTiles)
	for i := 0; i < nThreads; i++ {
		go func() {
			for t := range tileQueue {
				objects, tileBoxes, err := detectTile(det, tiling, t.x, t.y, img)
				results <- tileResult{objects: objects, boxes: tileBoxes, err: err}
			}
		}()
	}

	allObjects := []Detection{}
	allBoxes := []tiledinference.Box{}
	var firstError error
	for i := 0; i < numTiles; i++ {
		r := <-results
		if r.err != nil {
			if firstError == nil {
				firstError = r.err
			}
			continue
		}
		allObjects = append(allObjects, r.objects...)
		allBoxes = append(allBoxes, r.boxes...)
	}
	if firstError != nil {
		return nil, firstError
	}

	merged := []Detection{}
	if tiling.IsSingle() {
		merged = allObjects
	} else {
		groups, mergedBoxes := tiledinference.MergeBoxes(tiling, allBoxes, nil)
		for igroup, group := range groups {
			// Start with the first object in the group, take the merged
			// box, and the best confidence of the group.
			newObj := allObjects[group[0]]
			r := mergedBoxes[igroup].Rect
			newObj.Box = boxes.Rect{X1: float32(r.X1), Y1: float32(r.Y1), X2: float32(r.X2), Y2: float32(r.Y2)}
			for _, el := range group[1:] {
				if allObjects[el].Confidence > newObj.Confidence {
					newObj.Confidence = allObjects[el].Confidence
				}
			}
			merged = append(merged, newObj)
		}
	}

	// Back to normalized coordinates, clipping at the very end: a merged
	// box can extend slightly past the frame.
	for i := range merged {
		merged[i].Box = boxes.Rect{
			X1: merged[i].Box.X1 / float32(frameWidth),
			Y1: merged[i].Box.Y1 / float32(frameHeight),
			X2: merged[i].Box.X2 / float32(frameWidth),
			Y2: merged[i].Box.Y2 / float32(frameHeight),
		}.Clamp(1, 1)
	}
	return merged, nil
}

type tile struct {
	x int
	y int
}

type tileResult struct {
	objects []Detection
	boxes   []tiledinference.Box
	err     error
}

// detectTile runs the detector on one tile. The returned detections are in
// frame pixel coordinates, and the parallel tiledinference boxes carry the
// tile index for the cross-seam merge.
func detectTile(det Detector, tiling tiledinference.Tiling, tx, ty int, img gocv.Mat) ([]Detection, []tiledinference.Box, error) {
	tileRect := tiling.TileRect(tx, ty)
	// The single tile of a frame smaller than the model input extends past
	// the frame, and Region refuses an ROI outside its Mat.
	roi := image.Rect(int(tileRect.X1), int(tileRect.Y1), int(tileRect.X2), int(tileRect.Y2)).
		Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	region := img.Region(roi)
	defer region.Close()
	dets, err := det.DetectFrame(region)
	if err != nil {
		return nil, nil, err
	}
	tileWidth := float32(roi.Dx())
	tileHeight := float32(roi.Dy())
	tileBoxes := make([]tiledinference.Box, 0, len(dets))
	for i, d := range dets {
		px := boxes.Rect{
			X1: d.Box.X1*tileWidth + float32(roi.Min.X),
			Y1: d.Box.Y1*tileHeight + float32(roi.Min.Y),
			X2: d.Box.X2*tileWidth + float32(roi.Min.X),
			Y2: d.Box.Y2*tileHeight + float32(roi.Min.Y),
		}
		dets[i].Box = px
		tileBoxes = append(tileBoxes, tiledinference.Box{
			Rect: tiledinference.Rect{
				X1: int32(px.X1),
				Y1: int32(px.Y1),
				X2: int32(px.X2),
				Y2: int32(px.Y2),
			},
			Class: int32(d.Class),
			Tile:  tiling.MakeTileIndex(tx, ty),
		})
	}
	return dets, tileBoxes, nil
}
