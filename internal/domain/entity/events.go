package entity

// VisualEvent is one annotated key frame: the semantic labels the external
// vision annotator attached to a single point in time. Themes and Objects are
// kept as sorted slices so serialized results are stable across runs.
type VisualEvent struct {
	Timestamp  float64  `json:"timestamp"`
	SceneType  string   `json:"scene_type"`
	Themes     []string `json:"themes"`
	Objects    []string `json:"objects"`
	Confidence float32  `json:"confidence"`
}

// AudioEvent is one transcribed speech segment. Segments from a single
// transcriber run are non-overlapping and ordered by Start; End >= Start.
type AudioEvent struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// EmotionEvent marks a detected emotion transition (not a steady-state label).
type EmotionEvent struct {
	Timestamp   float64 `json:"timestamp"`
	FromEmotion string  `json:"from_emotion"`
	ToEmotion   string  `json:"to_emotion"`
}
