package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
	"go.uber.org/zap"
)

// Client calls the external speech-to-text service with an extracted audio
// track and maps its response onto timed speech segments plus any emotion
// transitions derived from the text.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type transcribeResponse struct {
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		Confidence float32 `json:"confidence"`
	} `json:"segments"`
	Emotions []struct {
		Timestamp   float64 `json:"timestamp"`
		FromEmotion string  `json:"from_emotion"`
		ToEmotion   string  `json:"to_emotion"`
	} `json:"emotions"`
}

func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]entity.AudioEvent, []entity.EmotionEvent, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, nil, fmt.Errorf("copy audio into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcribe", &body)
	if err != nil {
		return nil, nil, fmt.Errorf("build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("transcribe: unexpected status %d", resp.StatusCode)
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode transcribe response: %w", err)
	}

	audio := make([]entity.AudioEvent, 0, len(out.Segments))
	for _, s := range out.Segments {
		audio = append(audio, entity.AudioEvent{
			Start:      s.Start,
			End:        s.End,
			Text:       s.Text,
			Confidence: s.Confidence,
		})
	}
	emotions := make([]entity.EmotionEvent, 0, len(out.Emotions))
	for _, e := range out.Emotions {
		emotions = append(emotions, entity.EmotionEvent{
			Timestamp:   e.Timestamp,
			FromEmotion: e.FromEmotion,
			ToEmotion:   e.ToEmotion,
		})
	}

	c.logger.Debug("transcription complete",
		zap.Int("segments", len(audio)),
		zap.Int("emotions", len(emotions)),
	)
	return audio, emotions, nil
}
