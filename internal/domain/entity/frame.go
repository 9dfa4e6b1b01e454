package entity

import "fmt"

// KeyFrameReason records which selection rule retained a frame.
type KeyFrameReason string

const (
	ReasonVideoStart     KeyFrameReason = "VIDEO_START"
	ReasonVideoEnd       KeyFrameReason = "VIDEO_END"
	ReasonSceneChange    KeyFrameReason = "SCENE_CHANGE"
	ReasonHighQuality    KeyFrameReason = "HIGH_QUALITY"
	ReasonPeriodicSample KeyFrameReason = "PERIODIC_SAMPLE"
)

// ContentHashSize is the byte length of the perceptual fingerprint (an 8x8
// block-average threshold hash, one bit per block).
const ContentHashSize = 8

// FrameInfo is one key frame retained by the extractor. Instances are
// immutable once produced; downstream consumers only read them.
type FrameInfo struct {
	FrameNumber      uint64                `json:"frame_number"`
	Timestamp        float64               `json:"timestamp"`
	SceneChangeScore float32               `json:"scene_change_score"`
	IsKeyFrame       bool                  `json:"is_key_frame"`
	KeyFrameReason   KeyFrameReason        `json:"key_frame_reason"`
	Brightness       float32               `json:"brightness"`
	Contrast         float32               `json:"contrast"`
	Sharpness        float32               `json:"sharpness"`
	ContentHash      [ContentHashSize]byte `json:"content_hash"`
}

// ContentHashHex renders the fingerprint for logs and stored results.
func (f *FrameInfo) ContentHashHex() string {
	return fmt.Sprintf("%x", f.ContentHash)
}
