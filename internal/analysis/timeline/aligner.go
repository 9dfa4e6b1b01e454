// Package timeline fuses frame-level visual events with speech and emotion
// events into a single time-aligned account of a video. Align is a pure
// function: identical inputs always produce identical output, so re-running
// an alignment is always safe.
package timeline

import (
	"math"
	"sort"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
)

// Config names every empirically tuned constant of the fusion algorithm.
// None of these values have a derived optimum; they are tuning choices and
// deliberately overridable. Zero values fall back to the defaults.
type Config struct {
	// BucketSize is the unified-timeline bucket width in seconds.
	BucketSize float64
	// SceneAudioWindow is the +/- search window pairing a scene change with
	// nearby audio segments.
	SceneAudioWindow float64
	// EmotionVisualWindow is the +/- search window pairing an emotion
	// transition with nearby visual events.
	EmotionVisualWindow float64

	// Confidence step function over the minimum distance to the nearest
	// correlated event. A step rather than continuous decay: cross-modal
	// timestamps are segment-granular, so finer precision would be
	// misleading.
	ConfidenceNear    float32 // distance <= NearDistance
	ConfidenceMid     float32 // distance <= MidDistance
	ConfidenceFar     float32 // distance <= FarDistance
	ConfidenceDefault float32 // anything farther
	NearDistance      float64
	MidDistance       float64
	FarDistance       float64

	// Overall-quality blend weights and level cut points.
	WeightCoverage  float32
	WeightSyncRatio float32
	WeightAvgConf   float32
	HighCutoff      float32
	MediumCutoff    float32
}

func DefaultConfig() Config {
	return Config{
		BucketSize:          1.0,
		SceneAudioWindow:    2.0,
		EmotionVisualWindow: 1.5,
		ConfidenceNear:      0.9,
		ConfidenceMid:       0.7,
		ConfidenceFar:       0.5,
		ConfidenceDefault:   0.3,
		NearDistance:        0.5,
		MidDistance:         1.0,
		FarDistance:         2.0,
		WeightCoverage:      0.4,
		WeightSyncRatio:     0.3,
		WeightAvgConf:       0.3,
		HighCutoff:          0.7,
		MediumCutoff:        0.4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BucketSize == 0 {
		c.BucketSize = d.BucketSize
	}
	if c.SceneAudioWindow == 0 {
		c.SceneAudioWindow = d.SceneAudioWindow
	}
	if c.EmotionVisualWindow == 0 {
		c.EmotionVisualWindow = d.EmotionVisualWindow
	}
	if c.ConfidenceNear == 0 {
		c.ConfidenceNear = d.ConfidenceNear
	}
	if c.ConfidenceMid == 0 {
		c.ConfidenceMid = d.ConfidenceMid
	}
	if c.ConfidenceFar == 0 {
		c.ConfidenceFar = d.ConfidenceFar
	}
	if c.ConfidenceDefault == 0 {
		c.ConfidenceDefault = d.ConfidenceDefault
	}
	if c.NearDistance == 0 {
		c.NearDistance = d.NearDistance
	}
	if c.MidDistance == 0 {
		c.MidDistance = d.MidDistance
	}
	if c.FarDistance == 0 {
		c.FarDistance = d.FarDistance
	}
	if c.WeightCoverage == 0 {
		c.WeightCoverage = d.WeightCoverage
	}
	if c.WeightSyncRatio == 0 {
		c.WeightSyncRatio = d.WeightSyncRatio
	}
	if c.WeightAvgConf == 0 {
		c.WeightAvgConf = d.WeightAvgConf
	}
	if c.HighCutoff == 0 {
		c.HighCutoff = d.HighCutoff
	}
	if c.MediumCutoff == 0 {
		c.MediumCutoff = d.MediumCutoff
	}
	return c
}

// Align fuses the three event streams into a unified timeline, audio-anchored
// temporal segments, detected sync events and an aggregate quality score.
// Empty inputs are valid degenerate cases producing degraded output, never an
// error. Audio events are assumed non-overlapping and start-ordered (the
// transcriber contract).
func Align(visual []entity.VisualEvent, audio []entity.AudioEvent, emotions []entity.EmotionEvent, cfg Config) entity.AlignmentResult {
	cfg = cfg.withDefaults()

	timeline, coverage := buildTimeline(visual, audio, cfg)
	segments := matchTemporalSegments(visual, audio)
	syncs := detectSyncEvents(visual, audio, emotions, cfg)
	quality := scoreAlignment(segments, syncs, cfg)

	return entity.AlignmentResult{
		Timeline:         timeline,
		Coverage:         coverage,
		TemporalSegments: segments,
		SyncEvents:       syncs,
		Quality:          quality,
	}
}

// buildTimeline partitions [0, T] into fixed-width buckets, where T is the
// later of the last visual timestamp and the last audio end, and assigns each
// event to every bucket its interval intersects. Instantaneous visual events
// are treated as zero-length intervals.
func buildTimeline(visual []entity.VisualEvent, audio []entity.AudioEvent, cfg Config) ([]entity.TimeSegment, entity.ModalityCoverage) {
	var end float64
	for _, v := range visual {
		if v.Timestamp > end {
			end = v.Timestamp
		}
	}
	for _, a := range audio {
		if a.End > end {
			end = a.End
		}
	}
	if end == 0 {
		return nil, entity.ModalityCoverage{}
	}

	n := int(math.Ceil(end / cfg.BucketSize))
	if n == 0 {
		n = 1
	}

	timeline := make([]entity.TimeSegment, n)
	for i := range timeline {
		timeline[i] = entity.TimeSegment{
			SegmentID: uint32(i),
			Start:     float64(i) * cfg.BucketSize,
			End:       float64(i+1) * cfg.BucketSize,
		}
	}

	for vi, v := range visual {
		// The timeline covers the closed interval [0, T]; an instantaneous
		// event at exactly T belongs to the last bucket even though the
		// bucket intervals are half-open.
		if v.Timestamp == timeline[n-1].End {
			timeline[n-1].VisualEvents = append(timeline[n-1].VisualEvents, vi)
			continue
		}
		for i := range timeline {
			if intersects(v.Timestamp, v.Timestamp, timeline[i].Start, timeline[i].End) {
				timeline[i].VisualEvents = append(timeline[i].VisualEvents, vi)
			}
		}
	}
	for ai, a := range audio {
		for i := range timeline {
			if intersects(a.Start, a.End, timeline[i].Start, timeline[i].End) {
				timeline[i].AudioEvents = append(timeline[i].AudioEvents, ai)
			}
		}
	}

	var withVisual, withAudio, withBoth int
	for i := range timeline {
		timeline[i].HasVisual = len(timeline[i].VisualEvents) > 0
		timeline[i].HasAudio = len(timeline[i].AudioEvents) > 0
		timeline[i].ModalityOverlap = timeline[i].HasVisual && timeline[i].HasAudio
		if timeline[i].HasVisual {
			withVisual++
		}
		if timeline[i].HasAudio {
			withAudio++
		}
		if timeline[i].ModalityOverlap {
			withBoth++
		}
	}

	coverage := entity.ModalityCoverage{
		Visual:  float32(withVisual) / float32(n),
		Audio:   float32(withAudio) / float32(n),
		Overlap: float32(withBoth) / float32(n),
	}
	return timeline, coverage
}

// intersects reports whether event interval [a,b] overlaps bucket [start,end).
// An instantaneous event has a == b and still intersects the bucket holding
// its timestamp.
func intersects(a, b, start, end float64) bool {
	if a == b {
		return a >= start && a < end
	}
	return a < end && b > start
}

// matchTemporalSegments builds one audio-anchored fusion unit per audio
// event, carrying the union of visual labels whose timestamp falls inside
// [start, end). Segments with no visual coverage are still emitted: absence
// of video context is itself meaningful.
func matchTemporalSegments(visual []entity.VisualEvent, audio []entity.AudioEvent) []entity.TemporalSegment {
	if len(audio) == 0 {
		return nil
	}

	segments := make([]entity.TemporalSegment, 0, len(audio))
	for _, a := range audio {
		seg := entity.TemporalSegment{
			Start:      a.Start,
			End:        a.End,
			Text:       a.Text,
			Confidence: a.Confidence,
		}

		sceneTypes := map[string]struct{}{}
		themes := map[string]struct{}{}
		objects := map[string]struct{}{}
		for vi, v := range visual {
			if v.Timestamp < a.Start || v.Timestamp >= a.End {
				continue
			}
			seg.VisualEvents = append(seg.VisualEvents, vi)
			if v.SceneType != "" {
				sceneTypes[v.SceneType] = struct{}{}
			}
			for _, t := range v.Themes {
				themes[t] = struct{}{}
			}
			for _, o := range v.Objects {
				objects[o] = struct{}{}
			}
		}

		seg.SceneTypes = sortedKeys(sceneTypes)
		seg.Themes = sortedKeys(themes)
		seg.Objects = sortedKeys(objects)
		segments = append(segments, seg)
	}
	return segments
}

// sortedKeys keeps set-valued fields deterministic so serialized results are
// bit-stable across runs.
func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scoreAlignment aggregates coverage, sync density and sync confidence into
// one [0,1] score. With no temporal segments every component degrades to
// zero and the result reports Low quality.
func scoreAlignment(segments []entity.TemporalSegment, syncs []entity.SyncEvent, cfg Config) entity.AlignmentQuality {
	var q entity.AlignmentQuality

	if len(segments) > 0 {
		covered := 0
		for i := range segments {
			if segments[i].HasVisual() {
				covered++
			}
		}
		q.Coverage = float32(covered) / float32(len(segments))
		q.SyncRatio = clamp01(float32(len(syncs)) / float32(len(segments)))
	}

	if len(syncs) > 0 {
		var sum float32
		for i := range syncs {
			sum += syncs[i].SyncConfidence
		}
		q.AvgSyncConfidence = sum / float32(len(syncs))
	}

	q.OverallQuality = clamp01(cfg.WeightCoverage*q.Coverage +
		cfg.WeightSyncRatio*q.SyncRatio +
		cfg.WeightAvgConf*q.AvgSyncConfidence)

	switch {
	case q.OverallQuality > cfg.HighCutoff:
		q.QualityLevel = entity.QualityHigh
	case q.OverallQuality > cfg.MediumCutoff:
		q.QualityLevel = entity.QualityMedium
	default:
		q.QualityLevel = entity.QualityLow
	}
	return q
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
