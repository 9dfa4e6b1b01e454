package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidsense/vidsense-analysis-service/internal/domain/entity"
)

func visualAt(ts float64, sceneType string, themes ...string) entity.VisualEvent {
	return entity.VisualEvent{
		Timestamp:  ts,
		SceneType:  sceneType,
		Themes:     themes,
		Confidence: 0.8,
	}
}

func audioSeg(start, end float64, text string) entity.AudioEvent {
	return entity.AudioEvent{Start: start, End: end, Text: text, Confidence: 0.9}
}

func TestAlignIsDeterministic(t *testing.T) {
	visual := []entity.VisualEvent{
		visualAt(1.0, "office", "work", "desk"),
		visualAt(3.5, "street", "traffic"),
		visualAt(6.0, "office", "work"),
	}
	audio := []entity.AudioEvent{
		audioSeg(0.0, 2.0, "intro"),
		audioSeg(3.0, 5.0, "outside now"),
	}
	emotions := []entity.EmotionEvent{
		{Timestamp: 3.2, FromEmotion: "neutral", ToEmotion: "excited"},
	}

	first := Align(visual, audio, emotions, Config{})
	second := Align(visual, audio, emotions, Config{})
	assert.Equal(t, first, second)
}

func TestTemporalSegmentCarriesVisualThemes(t *testing.T) {
	audio := []entity.AudioEvent{audioSeg(0.0, 2.0, "intro")}
	visual := []entity.VisualEvent{visualAt(1.0, "office", "office")}

	res := Align(visual, audio, nil, Config{})

	require.Len(t, res.TemporalSegments, 1)
	seg := res.TemporalSegments[0]
	assert.Equal(t, "intro", seg.Text)
	assert.Equal(t, []string{"office"}, seg.Themes)
	assert.Equal(t, []string{"office"}, seg.SceneTypes)
	assert.True(t, seg.HasVisual())
}

func TestNoAudioProducesNoTemporalSegments(t *testing.T) {
	visual := []entity.VisualEvent{
		visualAt(1.0, "office"),
		visualAt(2.0, "street"),
		visualAt(3.0, "park"),
	}

	res := Align(visual, nil, nil, Config{})

	assert.Empty(t, res.TemporalSegments)
	assert.Equal(t, float32(0), res.Quality.Coverage)
	assert.Equal(t, entity.QualityLow, res.Quality.QualityLevel)
}

func TestAudioWithoutVisualStillEmitsSegments(t *testing.T) {
	audio := []entity.AudioEvent{
		audioSeg(0.0, 2.0, "first"),
		audioSeg(2.5, 4.0, "second"),
	}

	res := Align(nil, audio, nil, Config{})

	require.Len(t, res.TemporalSegments, 2)
	for _, seg := range res.TemporalSegments {
		assert.False(t, seg.HasVisual())
		assert.Empty(t, seg.Themes)
		assert.Empty(t, seg.Objects)
		assert.Empty(t, seg.SceneTypes)
	}
	assert.Equal(t, float32(0), res.Quality.Coverage)
	assert.Equal(t, entity.QualityLow, res.Quality.QualityLevel)
}

func TestBothEmptyIsValidDegenerate(t *testing.T) {
	res := Align(nil, nil, nil, Config{})

	assert.Empty(t, res.Timeline)
	assert.Empty(t, res.TemporalSegments)
	assert.Empty(t, res.SyncEvents)
	assert.Equal(t, float32(0), res.Quality.OverallQuality)
	assert.Equal(t, entity.QualityLow, res.Quality.QualityLevel)
}

func TestUnifiedTimelineBuckets(t *testing.T) {
	visual := []entity.VisualEvent{visualAt(0.5, "office"), visualAt(2.5, "office")}
	audio := []entity.AudioEvent{audioSeg(1.0, 3.0, "spanning")}

	res := Align(visual, audio, nil, Config{})

	// T = max(2.5, 3.0) = 3.0 -> three 1s buckets.
	require.Len(t, res.Timeline, 3)

	assert.True(t, res.Timeline[0].HasVisual)
	assert.False(t, res.Timeline[0].HasAudio)

	assert.False(t, res.Timeline[1].HasVisual)
	assert.True(t, res.Timeline[1].HasAudio)

	assert.True(t, res.Timeline[2].HasVisual)
	assert.True(t, res.Timeline[2].HasAudio)
	assert.True(t, res.Timeline[2].ModalityOverlap)

	assert.InDelta(t, 2.0/3.0, float64(res.Coverage.Visual), 1e-6)
	assert.InDelta(t, 2.0/3.0, float64(res.Coverage.Audio), 1e-6)
	assert.InDelta(t, 1.0/3.0, float64(res.Coverage.Overlap), 1e-6)
}

func TestVisualEventAtTimelineEndIsBucketed(t *testing.T) {
	// A sole visual event at an exact bucket multiple defines the timeline
	// end; it must land in the last bucket, not fall off the half-open edge.
	res := Align([]entity.VisualEvent{visualAt(3.0, "office")}, nil, nil, Config{})

	require.Len(t, res.Timeline, 3)
	last := res.Timeline[len(res.Timeline)-1]
	assert.True(t, last.HasVisual)
	assert.Equal(t, []int{0}, last.VisualEvents)
	assert.InDelta(t, 1.0/3.0, float64(res.Coverage.Visual), 1e-6)
}

func TestOverallQualityBounded(t *testing.T) {
	cases := []struct {
		name     string
		visual   []entity.VisualEvent
		audio    []entity.AudioEvent
		emotions []entity.EmotionEvent
	}{
		{name: "empty"},
		{name: "audio only", audio: []entity.AudioEvent{audioSeg(0, 5, "x")}},
		{name: "visual only", visual: []entity.VisualEvent{visualAt(1, "a"), visualAt(2, "b")}},
		{
			name:   "dense sync",
			visual: []entity.VisualEvent{visualAt(1, "a"), visualAt(1.2, "b"), visualAt(1.4, "c"), visualAt(1.6, "d")},
			audio:  []entity.AudioEvent{audioSeg(0, 3, "x")},
			emotions: []entity.EmotionEvent{
				{Timestamp: 1.0}, {Timestamp: 1.2}, {Timestamp: 1.4},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Align(tc.visual, tc.audio, tc.emotions, Config{})
			q := res.Quality
			assert.GreaterOrEqual(t, q.OverallQuality, float32(0))
			assert.LessOrEqual(t, q.OverallQuality, float32(1))
			assert.GreaterOrEqual(t, q.SyncRatio, float32(0))
			assert.LessOrEqual(t, q.SyncRatio, float32(1))
			assert.GreaterOrEqual(t, q.Coverage, float32(0))
			assert.LessOrEqual(t, q.Coverage, float32(1))
		})
	}
}

func TestQualityLevelThresholds(t *testing.T) {
	// Full coverage and a contained sync event drive the score above the
	// high cutoff.
	visual := []entity.VisualEvent{visualAt(0.5, "office"), visualAt(1.5, "street")}
	audio := []entity.AudioEvent{audioSeg(0.0, 2.0, "talk")}

	res := Align(visual, audio, nil, Config{})
	require.Len(t, res.SyncEvents, 1)
	// coverage=1, sync_ratio=1, avg=0.9 -> 0.4 + 0.3 + 0.27 = 0.97
	assert.InDelta(t, 0.97, float64(res.Quality.OverallQuality), 1e-6)
	assert.Equal(t, entity.QualityHigh, res.Quality.QualityLevel)
}
