package keyframe

import "math"

// Normalization constants for the per-frame quality metrics. These are tuning
// choices, kept named so they can be revisited without hunting literals.
const (
	// contrastFullScale is the grayscale stddev treated as maximal contrast.
	contrastFullScale = 64.0
	// sharpnessFullScale is the Laplacian variance treated as maximally sharp.
	sharpnessFullScale = 1000.0

	qualityWeightBrightness = 0.3
	qualityWeightContrast   = 0.3
	qualityWeightSharpness  = 0.4

	sceneWeightHistogram = 0.5
	sceneWeightMean      = 0.3
	sceneWeightVariance  = 0.2

	histogramBins = 256
)

// frameStats holds the per-frame signals reused by both the quality score and
// the scene-change comparison, so each frame is measured exactly once.
type frameStats struct {
	mean      float64
	variance  float64
	sharpness float64
	histogram [histogramBins]float64
}

func computeStats(gray []byte, width, height int) frameStats {
	var s frameStats

	n := float64(len(gray))
	var sum, sumSq float64
	for _, p := range gray {
		v := float64(p)
		sum += v
		sumSq += v * v
		s.histogram[p]++
	}
	s.mean = sum / n
	s.variance = sumSq/n - s.mean*s.mean
	if s.variance < 0 {
		s.variance = 0
	}
	s.sharpness = laplacianVariance(gray, width, height)
	return s
}

// laplacianVariance applies the 4-neighbour Laplacian kernel to the interior
// pixels and returns the variance of the response. Flat frames score near
// zero, sharp edges drive it up.
func laplacianVariance(gray []byte, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}
	n := 0
	var sum, sumSq float64
	for y := 1; y < height-1; y++ {
		row := y * width
		for x := 1; x < width-1; x++ {
			i := row + x
			lap := 4*float64(gray[i]) -
				float64(gray[i-1]) - float64(gray[i+1]) -
				float64(gray[i-width]) - float64(gray[i+width])
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	v := sumSq/float64(n) - mean*mean
	if v < 0 {
		v = 0
	}
	return v
}

// qualityScore blends brightness, contrast and sharpness into one [0,1]
// score. Brightness is scored by distance from mid-gray so both washed-out
// and underexposed frames rank low.
func qualityScore(s frameStats) (brightness, contrast, sharpness, score float32) {
	b := 1.0 - math.Abs(s.mean-128.0)/128.0
	c := math.Min(math.Sqrt(s.variance)/contrastFullScale, 1.0)
	sh := math.Min(s.sharpness/sharpnessFullScale, 1.0)

	q := qualityWeightBrightness*b + qualityWeightContrast*c + qualityWeightSharpness*sh
	return float32(b), float32(c), float32(sh), clamp01(float32(q))
}

// sceneChangeScore measures visual dissimilarity between two evaluated
// frames. Histogram correlation alone misses spatial redistribution with an
// identical color histogram, so mean and variance deltas are blended in to
// catch abrupt brightness and contrast shifts. Anti-correlated histograms
// push the first term above 1; the final clamp absorbs it.
func sceneChangeScore(prev, cur frameStats) float32 {
	histDissim := 1.0 - histogramCorrelation(&prev.histogram, &cur.histogram)
	meanDelta := math.Abs(prev.mean-cur.mean) / 255.0
	varDelta := math.Abs(prev.variance-cur.variance) / math.Max(math.Max(prev.variance, cur.variance), 1.0)

	score := sceneWeightHistogram*histDissim + sceneWeightMean*meanDelta + sceneWeightVariance*varDelta
	return clamp01(float32(score))
}

// histogramCorrelation is the Pearson correlation of two intensity
// histograms, in [-1,1]. Degenerate (zero-variance) histograms correlate
// perfectly with themselves and not at all with anything else.
func histogramCorrelation(a, b *[histogramBins]float64) float64 {
	var meanA, meanB float64
	for i := 0; i < histogramBins; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= histogramBins
	meanB /= histogramBins

	var num, denA, denB float64
	for i := 0; i < histogramBins; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		if denA == denB {
			return 1.0
		}
		return 0.0
	}
	return num / math.Sqrt(denA*denB)
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

// toGrayscale converts an RGB24 buffer to single-channel luma using the
// BT.601 weights. Gray input is returned as-is.
func toGrayscale(pixels []byte, format string) []byte {
	if format != "rgb24" {
		return pixels
	}
	gray := make([]byte, len(pixels)/3)
	for i := range gray {
		r := float64(pixels[i*3])
		g := float64(pixels[i*3+1])
		b := float64(pixels[i*3+2])
		gray[i] = byte(0.299*r + 0.587*g + 0.114*b)
	}
	return gray
}
