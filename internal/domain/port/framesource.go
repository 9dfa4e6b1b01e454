package port

import "context"

// PixelFormat identifies the layout of a decoded frame buffer.
type PixelFormat string

const (
	PixelFormatGray  PixelFormat = "gray"
	PixelFormatRGB24 PixelFormat = "rgb24"
)

// Frame is one decoded video frame. The pixel buffer is shared by reference
// and must not be modified by consumers.
type Frame struct {
	Number    uint64
	Timestamp float64
	Pixels    []byte
	Width     int
	Height    int
	Format    PixelFormat
}

// FrameSource yields decoded frames in strictly increasing frame-number and
// timestamp order. Next returns io.EOF when the stream is exhausted; any
// other error applies to a single frame and the caller may keep reading.
type FrameSource interface {
	Next() (*Frame, error)
	FPS() float64
	TotalFrames() uint64
	Close() error
}

// FrameDecoder opens a stored video into a frame stream and pulls out its
// audio track for transcription.
type FrameDecoder interface {
	OpenVideo(ctx context.Context, videoPath string) (FrameSource, error)
	ExtractAudio(ctx context.Context, videoPath, outputWAV string) error
}
