package keyframe

import (
	"context"
	"errors"
	"io"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
	"github.com/vidsense/vidsense-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

var (
	// ErrSourceUnreadable means the stream produced no decodable frames at
	// all. Single bad frames mid-stream are skipped, not fatal.
	ErrSourceUnreadable = errors.New("frame source unreadable")

	// ErrCancelled is returned together with the partial result when the
	// context is cancelled mid-scan. Callers decide whether the partial
	// selection is still usable.
	ErrCancelled = errors.New("extraction cancelled")
)

// Config tunes the key-frame selection policy. Zero values fall back to the
// defaults below.
type Config struct {
	// SceneThreshold is the scene-change score above which a frame is
	// selected regardless of quality.
	SceneThreshold float32
	// MinInterval is the hard floor, in seconds, between two selections.
	MinInterval float64
	// MaxFrames caps the number of selected key frames.
	MaxFrames uint32
	// QualityThreshold gates the high-quality selection rule.
	QualityThreshold float32
}

func DefaultConfig() Config {
	return Config{
		SceneThreshold:   0.3,
		MinInterval:      1.0,
		MaxFrames:        100,
		QualityThreshold: 0.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SceneThreshold == 0 {
		c.SceneThreshold = d.SceneThreshold
	}
	if c.MinInterval == 0 {
		c.MinInterval = d.MinInterval
	}
	if c.MaxFrames == 0 {
		c.MaxFrames = d.MaxFrames
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	return c
}

// Result is the output of one extraction pass. Snapshots holds a grayscale
// pixel copy per selected frame, parallel to Frames, so the annotator can be
// called after the decoder is closed.
type Result struct {
	Frames          []entity.FrameInfo
	Snapshots       [][]byte
	Width           int
	Height          int
	EvaluatedFrames int
	SkippedFrames   int
}

// Extractor selects a compact set of representative frames from a decoded
// video stream in a single forward pass.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg.withDefaults(), logger: logger}
}

// candidate carries one evaluated frame through the selection policy.
type candidate struct {
	number     uint64
	timestamp  float64
	gray       []byte
	width      int
	height     int
	stats      frameStats
	sceneScore float32
	brightness float32
	contrast   float32
	sharpness  float32
	quality    float32
}

// ExtractKeyFrames scans the source once, evaluating every sampleStride-th
// frame, and returns the ordered key-frame selection. The context is checked
// once per evaluated frame; on cancellation the partial result is returned
// alongside ErrCancelled.
func (e *Extractor) ExtractKeyFrames(ctx context.Context, src port.FrameSource) (*Result, error) {
	stride := sampleStride(src.FPS())
	res := &Result{}

	var (
		havePrev        bool
		prevStats       frameStats
		lastEval        *candidate
		lastSelectedAt  float64
		lastSelectedNum uint64
		haveSelection   bool
		firstEvaluated  = true
		stoppedAtCap    bool
	)

	for {
		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.SkippedFrames++
			continue
		}

		// Evaluate at the sampling stride only; full-rate scanning is
		// unnecessary and costly.
		if frame.Number%uint64(stride) != 0 {
			continue
		}

		if err := ctx.Err(); err != nil {
			e.logger.Warn("extraction cancelled",
				zap.Int("selected", len(res.Frames)),
				zap.Int("evaluated", res.EvaluatedFrames),
			)
			return res, ErrCancelled
		}

		gray := toGrayscale(frame.Pixels, string(frame.Format))
		stats := computeStats(gray, frame.Width, frame.Height)

		cand := candidate{
			number:    frame.Number,
			timestamp: frame.Timestamp,
			gray:      gray,
			width:     frame.Width,
			height:    frame.Height,
			stats:     stats,
		}
		cand.brightness, cand.contrast, cand.sharpness, cand.quality = qualityScore(stats)
		if havePrev {
			cand.sceneScore = sceneChangeScore(prevStats, stats)
		}
		prevStats = stats
		havePrev = true
		res.EvaluatedFrames++
		res.Width = frame.Width
		res.Height = frame.Height

		reason, selected := e.decide(&cand, firstEvaluated, haveSelection, lastSelectedAt)
		firstEvaluated = false

		if selected {
			e.appendSelection(res, &cand, reason)
			lastSelectedAt = cand.timestamp
			lastSelectedNum = cand.number
			haveSelection = true

			if uint32(len(res.Frames)) >= e.cfg.MaxFrames {
				stoppedAtCap = true
				break
			}
		}

		lastEval = &cand
	}

	if res.EvaluatedFrames == 0 {
		return nil, ErrSourceUnreadable
	}

	// Force the final evaluated frame as VideoEnd. If the cap was hit
	// mid-stream the scan already ended on a selection, so there is nothing
	// to force; if the cap is full at natural end of stream the end frame
	// replaces the most recent selection so the cap still holds.
	if !stoppedAtCap && lastEval != nil && (!haveSelection || lastEval.number != lastSelectedNum) {
		if uint32(len(res.Frames)) >= e.cfg.MaxFrames {
			res.Frames = res.Frames[:len(res.Frames)-1]
			res.Snapshots = res.Snapshots[:len(res.Snapshots)-1]
		}
		e.appendSelection(res, lastEval, entity.ReasonVideoEnd)
	}

	e.logger.Info("key frame extraction complete",
		zap.Int("selected", len(res.Frames)),
		zap.Int("evaluated", res.EvaluatedFrames),
		zap.Int("skipped", res.SkippedFrames),
		zap.Int("stride", stride),
	)

	return res, nil
}

// decide applies the selection policy in priority order; the first matching
// rule wins. The end-of-stream rule is handled by the caller, which alone
// knows when the stream is exhausted.
func (e *Extractor) decide(c *candidate, first, haveSelection bool, lastSelectedAt float64) (entity.KeyFrameReason, bool) {
	if first || c.number == 0 {
		return entity.ReasonVideoStart, true
	}

	sinceLast := c.timestamp - lastSelectedAt
	if haveSelection && sinceLast < e.cfg.MinInterval {
		return "", false
	}
	if c.sceneScore > e.cfg.SceneThreshold {
		return entity.ReasonSceneChange, true
	}
	if c.quality > e.cfg.QualityThreshold && sinceLast >= 2*e.cfg.MinInterval {
		return entity.ReasonHighQuality, true
	}
	if sinceLast >= 5*e.cfg.MinInterval {
		return entity.ReasonPeriodicSample, true
	}
	return "", false
}

func (e *Extractor) appendSelection(res *Result, c *candidate, reason entity.KeyFrameReason) {
	snapshot := make([]byte, len(c.gray))
	copy(snapshot, c.gray)

	res.Frames = append(res.Frames, entity.FrameInfo{
		FrameNumber:      c.number,
		Timestamp:        c.timestamp,
		SceneChangeScore: c.sceneScore,
		IsKeyFrame:       true,
		KeyFrameReason:   reason,
		Brightness:       c.brightness,
		Contrast:         c.contrast,
		Sharpness:        c.sharpness,
		ContentHash:      contentHash(c.gray, c.width, c.height),
	})
	res.Snapshots = append(res.Snapshots, snapshot)
}

// sampleStride bounds the number of frames actually evaluated to roughly ten
// per second of video.
func sampleStride(fps float64) int {
	stride := int(fps / 10.0)
	if stride < 1 {
		stride = 1
	}
	return stride
}
