package port

import (
	"context"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
)

// Transcriber turns an extracted audio track into timed speech segments and
// any emotion transitions derived from them. Returned segments are
// non-overlapping and ordered by start time.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]entity.AudioEvent, []entity.EmotionEvent, error)
}
