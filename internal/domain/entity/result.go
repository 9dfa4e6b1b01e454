package entity

import "github.com/google/uuid"

// AnalysisDocument is the persisted output of one completed analysis job,
// stored as JSON in object storage. Event indexes inside the alignment refer
// to the event slices carried alongside it.
type AnalysisDocument struct {
	JobID         uuid.UUID       `json:"job_id"`
	VideoKey      string          `json:"video_key"`
	VideoDuration float64         `json:"video_duration"`
	KeyFrames     []FrameInfo     `json:"key_frames"`
	VisualEvents  []VisualEvent   `json:"visual_events"`
	AudioEvents   []AudioEvent    `json:"audio_events"`
	EmotionEvents []EmotionEvent  `json:"emotion_events"`
	Alignment     AlignmentResult `json:"alignment"`
	SkippedFrames int             `json:"skipped_frames"`
	FailedLabels  int             `json:"failed_labels"`
}
