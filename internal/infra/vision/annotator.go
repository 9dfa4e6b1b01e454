package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sort"
	"time"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
	"go.uber.org/zap"
)

// Annotator is the HTTP client for the external vision annotation service.
// The service receives one key frame per call and returns semantic labels;
// a failed call affects that frame only.
type Annotator struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewAnnotator(baseURL string, timeout time.Duration, logger *zap.Logger) *Annotator {
	return &Annotator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type annotateRequest struct {
	FrameNumber uint64  `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	ImagePNG    string  `json:"image_png"`
}

type annotateResponse struct {
	SceneType  string   `json:"scene_type"`
	Themes     []string `json:"themes"`
	Objects    []string `json:"objects"`
	Confidence float32  `json:"confidence"`
}

func (a *Annotator) Annotate(ctx context.Context, frame *entity.FrameInfo, pixels []byte, width, height int) (*entity.VisualEvent, error) {
	img, err := encodePNG(pixels, width, height)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", frame.FrameNumber, err)
	}

	body, err := json.Marshal(annotateRequest{
		FrameNumber: frame.FrameNumber,
		Timestamp:   frame.Timestamp,
		ImagePNG:    base64.StdEncoding.EncodeToString(img),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal annotate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/annotate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotate frame %d: %w", frame.FrameNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("annotate frame %d: unexpected status %d", frame.FrameNumber, resp.StatusCode)
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode annotate response: %w", err)
	}

	// Labels come back in arbitrary order; sort so stored results are stable.
	sort.Strings(out.Themes)
	sort.Strings(out.Objects)

	a.logger.Debug("frame annotated",
		zap.Uint64("frame_number", frame.FrameNumber),
		zap.String("scene_type", out.SceneType),
		zap.Int("themes", len(out.Themes)),
	)

	return &entity.VisualEvent{
		Timestamp:  frame.Timestamp,
		SceneType:  out.SceneType,
		Themes:     out.Themes,
		Objects:    out.Objects,
		Confidence: out.Confidence,
	}, nil
}

func encodePNG(gray []byte, width, height int) ([]byte, error) {
	if len(gray) != width*height {
		return nil, fmt.Errorf("pixel buffer size %d does not match %dx%d", len(gray), width, height)
	}
	img := &image.Gray{Pix: gray, Stride: width, Rect: image.Rect(0, 0, width, height)}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
