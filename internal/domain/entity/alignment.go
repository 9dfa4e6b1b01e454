package entity

// SyncType classifies a detected cross-modal coincidence.
type SyncType string

const (
	SyncSceneAudio    SyncType = "SCENE_AUDIO_SYNC"
	SyncEmotionVisual SyncType = "EMOTION_VISUAL_SYNC"
)

// QualityLevel buckets the overall alignment quality score.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "HIGH"
	QualityMedium QualityLevel = "MEDIUM"
	QualityLow    QualityLevel = "LOW"
)

// TimeSegment is one fixed-width bucket of the unified timeline. Event slices
// hold indexes into the aligner's input slices, keeping the result
// serializable without duplicating event payloads.
type TimeSegment struct {
	SegmentID       uint32  `json:"segment_id"`
	Start           float64 `json:"start"`
	End             float64 `json:"end"`
	VisualEvents    []int   `json:"visual_events"`
	AudioEvents     []int   `json:"audio_events"`
	HasVisual       bool    `json:"has_visual"`
	HasAudio        bool    `json:"has_audio"`
	ModalityOverlap bool    `json:"modality_overlap"`
}

// ModalityCoverage reports what fraction of timeline buckets contain events
// of each kind.
type ModalityCoverage struct {
	Visual  float32 `json:"visual"`
	Audio   float32 `json:"audio"`
	Overlap float32 `json:"overlap"`
}

// TemporalSegment is the audio-anchored fusion unit: one speech segment plus
// the union of visual context whose timestamps fall inside it. Audio segments
// with no visual coverage are still emitted with empty visual fields.
type TemporalSegment struct {
	Start        float64  `json:"start"`
	End          float64  `json:"end"`
	Text         string   `json:"text"`
	Confidence   float32  `json:"confidence"`
	SceneTypes   []string `json:"scene_types"`
	Themes       []string `json:"themes"`
	Objects      []string `json:"objects"`
	VisualEvents []int    `json:"visual_events"`
}

// HasVisual reports whether any visual event fell inside the segment.
func (s *TemporalSegment) HasVisual() bool { return len(s.VisualEvents) > 0 }

// SyncEvent is a detected temporal coincidence between a change in one
// modality and nearby events in the other. Trigger and Nearby are indexes
// into the triggering and correlated input slices respectively.
type SyncEvent struct {
	Timestamp      float64  `json:"timestamp"`
	Type           SyncType `json:"type"`
	Trigger        int      `json:"trigger"`
	Nearby         []int    `json:"nearby"`
	SyncConfidence float32  `json:"sync_confidence"`
}

// AlignmentQuality aggregates how well the two modalities cover and
// corroborate each other. All fields are in [0,1].
type AlignmentQuality struct {
	Coverage          float32      `json:"coverage"`
	SyncRatio         float32      `json:"sync_ratio"`
	AvgSyncConfidence float32      `json:"avg_sync_confidence"`
	OverallQuality    float32      `json:"overall_quality"`
	QualityLevel      QualityLevel `json:"quality_level"`
}

// AlignmentResult is the complete fused account of one video.
type AlignmentResult struct {
	Timeline         []TimeSegment     `json:"timeline"`
	Coverage         ModalityCoverage  `json:"coverage"`
	TemporalSegments []TemporalSegment `json:"temporal_segments"`
	SyncEvents       []SyncEvent       `json:"sync_events"`
	Quality          AlignmentQuality  `json:"quality"`
}
