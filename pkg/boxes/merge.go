package boxes

import (
	flatbush "github.com/bmharper/flatbush-go"
)

// Dedup scans all pairs of boxes, and if two boxes of the same class overlap
// with IoU >= minIoU, discards the smaller of the two. This cleans up
// duplicate detections, such as the same ball found in two adjacent
// inference tiles.
// Returns the indices of the boxes that should be retained.
func Dedup(input []Box, classes []int, minIoU float32) []int {
	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(input))
	for _, b := range input {
		fb.Add(b.X, b.Y, b.X+b.W, b.Y+b.H)
	}
	fb.Finish()

	// The boxes that we've already discarded
	deleted := map[int]bool{}
	nChanged := 1

	for nChanged != 0 {
		nChanged = 0
		for i, in := range input {
			if deleted[i] {
				continue
			}
			for _, j := range fb.Search(in.X, in.Y, in.X+in.W, in.Y+in.H) {
				if i == j {
					continue
				}
				if deleted[j] {
					continue
				}
				if classes[i] != classes[j] {
					continue
				}
				if in.IOU(input[j]) >= minIoU {
					// Keep the larger box. Ties keep the lower index.
					if input[j].Area() > in.Area() {
						deleted[i] = true
					} else {
						deleted[j] = true
					}
					nChanged++
				}
			}
		}
	}

	retain := make([]int, 0, len(input))
	for i := range input {
		if !deleted[i] {
			retain = append(retain, i)
		}
	}
	return retain
}
