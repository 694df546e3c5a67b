package nn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileName sits next to the model weights.
const ConfigFileName = "boxlab-model.json"

const (
	defaultWidth  = 300
	defaultHeight = 300
)

// ModelConfig is saved in a JSON file along with the weights of the model.
// Classes is indexed by class id, so index 0 is the background class.
type ModelConfig struct {
	Name    string   `json:"name"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Classes []string `json:"classes"`
}

// LoadModelConfig reads a model config JSON file.
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	if err := json.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("parsing %v: %w", filename, err)
	}
	return config, nil
}

// SaveModelConfig writes the config next to the model, indented for humans.
func SaveModelConfig(filename string, config *ModelConfig) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(config)
}

// ConfigForModel loads boxlab-model.json from the model's directory. When
// the file is absent we fall back to the historical 300x300 input and the
// caller's class list (typically read from the label map).
func ConfigForModel(modelPath string, fallbackClasses []string) (*ModelConfig, error) {
	fn := filepath.Join(filepath.Dir(modelPath), ConfigFileName)
	config, err := LoadModelConfig(fn)
	if os.IsNotExist(err) {
		return &ModelConfig{
			Name:    filepath.Base(modelPath),
			Width:   defaultWidth,
			Height:  defaultHeight,
			Classes: fallbackClasses,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if len(config.Classes) == 0 {
		config.Classes = fallbackClasses
	}
	return config, nil
}
