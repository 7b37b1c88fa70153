// Copyright 2025 Andrew McRae
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// Height that digit regions are normalized to before sampling.
const normHeight = 40

// prepare normalizes a cropped region for recognition: scale to a
// fixed height, apply contrast enhancement and convert to grayscale.
func prepare(img image.Image, gamma float64) *image.Gray {
	scaled := imaging.Resize(img, 0, normHeight, imaging.Lanczos)
	if gamma != 1.0 {
		// imaging uses gamma > 1 to lighten; the enhancement factor
		// is expressed the other way around (2.0 darkens mid levels,
		// stretching lit segments away from the background).
		scaled = imaging.AdjustGamma(scaled, 1.0/gamma)
	}
	b := scaled.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, scaled.At(x, y))
		}
	}
	return g
}

// peak returns the maximum brightness in the image. A low peak
// indicates a dark or blanked panel, which is not worth recognizing.
func peak(g *image.Gray) int {
	max := 0
	for _, p := range g.Pix {
		if int(p) > max {
			max = int(p)
		}
	}
	return max
}

// otsu calculates a binarization threshold from the image histogram
// using Otsu's method (maximising the between-class variance).
func otsu(g *image.Gray) int {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	total := len(g.Pix)
	var sumTotal int
	for i, n := range hist {
		sumTotal += i * n
	}
	var best, threshold int
	var sumFg, weightBg int
	for i := 0; i < 256; i++ {
		weightBg += hist[i]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumFg += i * hist[i]
		meanBg := sumFg / weightBg
		meanFg := (sumTotal - sumFg) / weightFg
		diff := meanBg - meanFg
		variance := weightBg * weightFg * diff * diff
		if variance > best {
			best = variance
			threshold = i
		}
	}
	return threshold
}

// binarize thresholds the image so that the digit strokes end up
// white. The stroke pixels are assumed to be the minority; if white
// comes out as the majority the image is inverted.
func binarize(g *image.Gray, threshold int) *image.Gray {
	b := g.Bounds()
	bin := image.NewGray(b)
	white := 0
	for i, p := range g.Pix {
		if int(p) > threshold {
			bin.Pix[i] = 255
			white++
		}
	}
	if white*2 > len(bin.Pix) {
		for i, p := range bin.Pix {
			bin.Pix[i] = 255 - p
		}
	}
	return bin
}

// litRatio returns the fraction of white pixels within the given
// rectangle of a binarized image.
func litRatio(bin *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(bin.Bounds())
	if r.Empty() {
		return 0
	}
	lit := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if bin.GrayAt(x, y).Y == 255 {
				lit++
			}
		}
	}
	return float64(lit) / float64(r.Dx()*r.Dy())
}
