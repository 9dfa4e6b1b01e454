package port

import (
	"context"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
)

// VisualAnnotator labels a single key frame with semantic content. A failure
// annotating one frame is recorded by the caller, never fatal to the batch.
type VisualAnnotator interface {
	Annotate(ctx context.Context, frame *entity.FrameInfo, pixels []byte, width, height int) (*entity.VisualEvent, error)
}
