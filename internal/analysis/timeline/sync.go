package timeline

import (
	"math"

	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
)

// detectSyncEvents runs the two independent cross-modal sweeps. Both sweeps
// keep their results even when they overlap in time.
func detectSyncEvents(visual []entity.VisualEvent, audio []entity.AudioEvent, emotions []entity.EmotionEvent, cfg Config) []entity.SyncEvent {
	var syncs []entity.SyncEvent
	syncs = append(syncs, sceneAudioSweep(visual, audio, cfg)...)
	syncs = append(syncs, emotionVisualSweep(visual, emotions, cfg)...)
	return syncs
}

// sceneAudioSweep pairs every scene change (an adjacent visual pair whose
// scene type differs, timestamped at the later frame) with audio segments
// inside the search window.
func sceneAudioSweep(visual []entity.VisualEvent, audio []entity.AudioEvent, cfg Config) []entity.SyncEvent {
	var syncs []entity.SyncEvent
	for i := 1; i < len(visual); i++ {
		if visual[i].SceneType == visual[i-1].SceneType {
			continue
		}
		at := visual[i].Timestamp

		var nearby []int
		minDist := math.MaxFloat64
		for ai, a := range audio {
			d := distanceToInterval(at, a.Start, a.End)
			if d <= cfg.SceneAudioWindow {
				nearby = append(nearby, ai)
				if d < minDist {
					minDist = d
				}
			}
		}
		if len(nearby) == 0 {
			continue
		}

		syncs = append(syncs, entity.SyncEvent{
			Timestamp:      at,
			Type:           entity.SyncSceneAudio,
			Trigger:        i,
			Nearby:         nearby,
			SyncConfidence: confidenceStep(minDist, cfg),
		})
	}
	return syncs
}

// emotionVisualSweep pairs every emotion transition with visual events inside
// the search window.
func emotionVisualSweep(visual []entity.VisualEvent, emotions []entity.EmotionEvent, cfg Config) []entity.SyncEvent {
	var syncs []entity.SyncEvent
	for ei, em := range emotions {
		var nearby []int
		minDist := math.MaxFloat64
		for vi, v := range visual {
			d := math.Abs(v.Timestamp - em.Timestamp)
			if d <= cfg.EmotionVisualWindow {
				nearby = append(nearby, vi)
				if d < minDist {
					minDist = d
				}
			}
		}
		if len(nearby) == 0 {
			continue
		}

		syncs = append(syncs, entity.SyncEvent{
			Timestamp:      em.Timestamp,
			Type:           entity.SyncEmotionVisual,
			Trigger:        ei,
			Nearby:         nearby,
			SyncConfidence: confidenceStep(minDist, cfg),
		})
	}
	return syncs
}

// distanceToInterval is the nearest-edge distance from a point to [start,end);
// zero when the point is contained.
func distanceToInterval(t, start, end float64) float64 {
	if t < start {
		return start - t
	}
	if t >= end {
		return t - end
	}
	return 0
}

// confidenceStep maps the minimum distance to the nearest correlated event
// onto the four-step confidence scale.
func confidenceStep(dist float64, cfg Config) float32 {
	switch {
	case dist <= cfg.NearDistance:
		return cfg.ConfidenceNear
	case dist <= cfg.MidDistance:
		return cfg.ConfidenceMid
	case dist <= cfg.FarDistance:
		return cfg.ConfidenceFar
	default:
		return cfg.ConfidenceDefault
	}
}
