package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

// Decoder opens stored videos as grayscale frame streams by piping ffmpeg's
// rawvideo output. Keeping the decode out-of-process means no codec
// dependency in the service binary.
type Decoder struct {
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) OpenVideo(ctx context.Context, videoPath string) (port.FrameSource, error) {
	meta, err := probeVideo(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-v", "error",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	d.logger.Debug("video decode started",
		zap.String("path", videoPath),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Float64("fps", meta.FPS),
	)

	return &rawVideoSource{
		cmd:    cmd,
		stdout: stdout,
		meta:   meta,
	}, nil
}

// ExtractAudio pulls the audio track out as 16kHz mono PCM, the input format
// transcription services expect.
func (d *Decoder) ExtractAudio(ctx context.Context, videoPath, outputWAV string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputWAV,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg audio extraction: %w, output: %s", err, string(output))
	}
	return nil
}

// rawVideoSource reads fixed-size grayscale frames off the ffmpeg pipe.
// Frames are timestamped from the stream frame rate; every buffer is freshly
// allocated because consumers hold frames beyond the next read.
type rawVideoSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	meta   *VideoMetadata
	next   uint64
	done   bool
}

func (s *rawVideoSource) Next() (*port.Frame, error) {
	if s.done {
		return nil, io.EOF
	}

	buf := make([]byte, s.meta.Width*s.meta.Height)
	_, err := io.ReadFull(s.stdout, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.done = true
		return nil, io.EOF
	}
	if err != nil {
		s.done = true
		return nil, fmt.Errorf("read frame %d: %w", s.next, err)
	}

	frame := &port.Frame{
		Number:    s.next,
		Timestamp: float64(s.next) / s.meta.FPS,
		Pixels:    buf,
		Width:     s.meta.Width,
		Height:    s.meta.Height,
		Format:    port.PixelFormatGray,
	}
	s.next++
	return frame, nil
}

func (s *rawVideoSource) FPS() float64        { return s.meta.FPS }
func (s *rawVideoSource) TotalFrames() uint64 { return s.meta.TotalFrames }

func (s *rawVideoSource) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}
