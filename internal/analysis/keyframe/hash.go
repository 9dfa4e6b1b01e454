package keyframe

import "github.com/vidsense/vidsense-analysis-service/internal/domain/entity"

// contentHash computes an 8x8 block-average threshold fingerprint: the frame
// is divided into an 8x8 grid, each cell averaged, and every cell brighter
// than the global mean sets one bit. Near-duplicate frames produce hashes
// within a small Hamming distance; the hash is advisory only and never used
// to drop frames during extraction.
func contentHash(gray []byte, width, height int) [entity.ContentHashSize]byte {
	var hash [entity.ContentHashSize]byte
	if width == 0 || height == 0 {
		return hash
	}

	var blocks [64]float64
	var total float64
	for by := 0; by < 8; by++ {
		y0 := by * height / 8
		y1 := (by + 1) * height / 8
		if y1 == y0 {
			y1 = y0 + 1
		}
		for bx := 0; bx < 8; bx++ {
			x0 := bx * width / 8
			x1 := (bx + 1) * width / 8
			if x1 == x0 {
				x1 = x0 + 1
			}
			var sum float64
			n := 0
			for y := y0; y < y1 && y < height; y++ {
				row := y * width
				for x := x0; x < x1 && x < width; x++ {
					sum += float64(gray[row+x])
					n++
				}
			}
			avg := sum / float64(n)
			blocks[by*8+bx] = avg
			total += avg
		}
	}

	mean := total / 64.0
	for i, avg := range blocks {
		if avg > mean {
			hash[i/8] |= 1 << uint(i%8)
		}
	}
	return hash
}

// HammingDistance counts differing fingerprint bits between two frames.
// Downstream consumers use it for near-duplicate awareness.
func HammingDistance(a, b [entity.ContentHashSize]byte) int {
	d := 0
	for i := range a {
		x := a[i] ^ b[i]
		for x != 0 {
			d++
			x &= x - 1
		}
	}
	return d
}
