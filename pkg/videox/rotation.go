package videox

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fieldvision/boxlab/pkg/shell"
)

// Rotation returns the rotation metadata (degrees) of the first video
// stream, or 0 when the stream carries no rotate tag. OpenCV ignores the
// tag when decoding, so rotated videos must be re-encoded before labeling.
func Rotation(path string) (int, error) {
	out, err := shell.Run("ffprobe",
		"-show_entries", "stream_tags=rotate",
		"-select_streams", "v:0",
		"-of", "json",
		path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %v: %w", path, err)
	}
	return parseRotation([]byte(out))
}

func parseRotation(probeJSON []byte) (int, error) {
	probe := struct {
		Streams []struct {
			Tags map[string]string `json:"tags"`
		} `json:"streams"`
	}{}
	if err := json.Unmarshal(probeJSON, &probe); err != nil {
		return 0, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return 0, nil
	}
	rotate, ok := probe.Streams[0].Tags["rotate"]
	if !ok {
		return 0, nil
	}
	deg, err := strconv.Atoi(rotate)
	if err != nil {
		return 0, fmt.Errorf("parsing rotate tag %q: %w", rotate, err)
	}
	return deg, nil
}

// BakeRotation re-encodes src into dst with no filters attached, which is
// enough for ffmpeg to apply the rotation tag to the pixels. Audio is
// dropped.
func BakeRotation(src, dst string) error {
	_, err := shell.Run("ffmpeg",
		"-i", src,
		"-an",
		"-preset", "ultrafast",
		dst)
	if err != nil {
		return fmt.Errorf("ffmpeg %v: %w", src, err)
	}
	return nil
}
