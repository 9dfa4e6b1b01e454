package entity

import "github.com/google/uuid"

// VideoAnalysisMessage is the inbound message from the video.analysis queue.
type VideoAnalysisMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// VideoStatusMessage is the outbound message published to the video.status
// queue. It doubles as the progress callback: in-flight jobs carry the
// current pipeline phase and a completion percentage.
type VideoStatusMessage struct {
	JobID         uuid.UUID    `json:"job_id"`
	UserID        string       `json:"user_id"`
	Status        JobStatus    `json:"status"`
	VideoKey      string       `json:"video_key"`
	ResultKey     string       `json:"result_key,omitempty"`
	Phase         string       `json:"phase,omitempty"`
	Percent       float32      `json:"percent,omitempty"`
	Message       string       `json:"message,omitempty"`
	KeyFrameCount int          `json:"key_frame_count,omitempty"`
	SkippedFrames int          `json:"skipped_frames,omitempty"`
	Duration      float64      `json:"duration_seconds,omitempty"`
	QualityLevel  QualityLevel `json:"quality_level,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	Attempt       int          `json:"attempt"`
	MaxAttempts   int          `json:"max_attempts"`
}
