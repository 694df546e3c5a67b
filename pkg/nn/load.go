package nn

import (
	"fmt"

	"github.com/fieldvision/boxlab/pkg/labelio"
)

// OpenDetector loads a detector from the flags shared by every inference
// tool: the model path, the lite/frozen switch, and their side files, so
// the tools don't need to know which constructor goes with which format.
// Classes come from boxlab-model.json next to the model when present, else
// from labelsPath: label.pbtxt for the frozen model (ids are 1-based, so
// background is prepended), or the lite class list (already 0-indexed with
// background on line 0).
func OpenDetector(modelPath, graphPath, priorsPath, labelsPath string, lite bool, params *Params) (Detector, error) {
	classes := []string{}
	if labelsPath != "" {
		var err error
		if lite {
			classes, err = labelio.ReadClassList(labelsPath)
		} else {
			var labels map[int]string
			labels, err = labelio.ReadLabelMap(labelsPath)
			if err == nil {
				classes = append([]string{"background"}, labelio.LabelMapClasses(labels)...)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	config, err := ConfigForModel(modelPath, classes)
	if err != nil {
		return nil, err
	}
	if lite {
		if priorsPath == "" {
			return nil, fmt.Errorf("a box priors file is required with the lite model")
		}
		return NewLiteDetector(modelPath, priorsPath, config, params)
	}
	return NewFrozenDetector(modelPath, graphPath, config, params)
}
