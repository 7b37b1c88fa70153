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
)

// Segments of a 7-segment digit.
const (
	S_TL, M_TL = iota, 1 << iota // Top left
	S_TM, M_TM = iota, 1 << iota // Top middle
	S_TR, M_TR = iota, 1 << iota // Top right
	S_BR, M_BR = iota, 1 << iota // Bottom right
	S_BM, M_BM = iota, 1 << iota // Bottom middle
	S_BL, M_BL = iota, 1 << iota // Bottom left
	S_MM, M_MM = iota, 1 << iota // Middle
	SEGMENTS   = iota
)

// Sampling window for one segment, expressed as fractions of the
// normalized digit bounding box.
type segBox struct {
	x0, y0, x1, y1 float64
}

// The window positions assume the digit fills the region. They are
// deliberately narrow so that a slightly misplaced region still
// samples the right stroke.
var segBoxes = [SEGMENTS]segBox{
	S_TL: {0.00, 0.15, 0.18, 0.42},
	S_TM: {0.25, 0.00, 0.75, 0.12},
	S_TR: {0.82, 0.15, 1.00, 0.42},
	S_BR: {0.82, 0.58, 1.00, 0.85},
	S_BM: {0.25, 0.88, 0.75, 1.00},
	S_BL: {0.00, 0.58, 0.18, 0.85},
	S_MM: {0.25, 0.44, 0.75, 0.56},
}

// There are 128 possible segment patterns; only the ones representing
// decimal digits are accepted. Anything else (including characters a
// meter LCD would show) reads as NoDigit on a heater panel.
const ____ = 0

var digitTable = map[int]byte{
	M_TL | M_TM | M_TR | M_BR | M_BM | M_BL | ____: '0',
	____ | ____ | M_TR | M_BR | ____ | ____ | ____: '1',
	____ | M_TM | M_TR | ____ | M_BM | M_BL | M_MM: '2',
	____ | M_TM | M_TR | M_BR | M_BM | ____ | M_MM: '3',
	M_TL | ____ | M_TR | M_BR | ____ | ____ | M_MM: '4',
	M_TL | M_TM | ____ | M_BR | M_BM | ____ | M_MM: '5',
	M_TL | M_TM | ____ | M_BR | M_BM | M_BL | M_MM: '6',
	M_TL | M_TM | M_TR | M_BR | ____ | ____ | ____: '7',
	____ | M_TM | M_TR | M_BR | ____ | ____ | ____: '7', // Alternate '7'
	M_TL | M_TM | M_TR | M_BR | M_BM | M_BL | M_MM: '8',
	M_TL | M_TM | M_TR | M_BR | M_BM | ____ | M_MM: '9',
}

// SegmentRecognizer decodes a digit by sampling the seven segment
// positions of the binarized region directly. No training or
// calibration images are required, only reasonable region placement.
type SegmentRecognizer struct {
	Brightness int     // Peak brightness floor
	Gamma      float64 // Contrast enhancement factor
	OnRatio    float64 // Lit pixel ratio at which a segment is on
}

// Recognize samples the segments and maps the lit pattern to a digit.
// The confidence is the margin of the least certain segment, i.e how
// far its lit ratio sits from the on/off cut, scaled to 0-1.
// A dark or unmatched region reads as NoDigit with zero confidence;
// that is a data result, not an error.
func (s *SegmentRecognizer) Recognize(img image.Image) (DigitReading, error) {
	g := prepare(img, s.Gamma)
	if peak(g) < s.Brightness {
		return DigitReading{Char: NoDigit}, nil
	}
	bin := binarize(g, otsu(g))
	b := bin.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	mask := 0
	worst := 1.0
	for i, sb := range segBoxes {
		r := image.Rect(
			b.Min.X+int(sb.x0*w), b.Min.Y+int(sb.y0*h),
			b.Min.X+int(sb.x1*w), b.Min.Y+int(sb.y1*h))
		ratio := litRatio(bin, r)
		if ratio >= s.OnRatio {
			mask |= 1 << uint(i)
		}
		margin := ratio - s.OnRatio
		if margin < 0 {
			margin = -margin
		}
		// Scale the margin by the widest possible distance from the cut.
		norm := s.OnRatio
		if 1.0-s.OnRatio > norm {
			norm = 1.0 - s.OnRatio
		}
		if m := margin / norm; m < worst {
			worst = m
		}
	}
	ch, ok := digitTable[mask]
	if !ok {
		return DigitReading{Char: NoDigit}, nil
	}
	return DigitReading{Char: ch, Confidence: worst}, nil
}
