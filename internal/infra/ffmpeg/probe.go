package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoMetadata is the subset of ffprobe output the decoder needs.
type VideoMetadata struct {
	Width       int
	Height      int
	FPS         float64
	Duration    float64
	TotalFrames uint64
}

func probeVideo(ctx context.Context, videoPath string) (*VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames:format=duration",
		"-of", "default=noprint_wrappers=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	meta := &VideoMetadata{}
	for _, line := range strings.Split(string(output), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "width":
			meta.Width, _ = strconv.Atoi(value)
		case "height":
			meta.Height, _ = strconv.Atoi(value)
		case "r_frame_rate":
			meta.FPS = parseFrameRate(value)
		case "nb_frames":
			n, err := strconv.ParseUint(value, 10, 64)
			if err == nil {
				meta.TotalFrames = n
			}
		case "duration":
			meta.Duration, _ = strconv.ParseFloat(value, 64)
		}
	}

	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("ffprobe: no video stream dimensions in %s", videoPath)
	}
	if meta.FPS <= 0 {
		meta.FPS = 25.0
	}
	if meta.TotalFrames == 0 && meta.Duration > 0 {
		meta.TotalFrames = uint64(meta.Duration * meta.FPS)
	}
	return meta, nil
}

// parseFrameRate handles ffprobe's rational notation, e.g. "30000/1001".
func parseFrameRate(value string) float64 {
	num, den, found := strings.Cut(value, "/")
	if !found {
		f, _ := strconv.ParseFloat(value, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
