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

	"testing"
)

// drawMask renders a synthetic digit with the given segments lit.
func drawMask(mask int) image.Image {
	const w, h = 25, 40
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, sb := range segBoxes {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		r := image.Rect(int(sb.x0*w), int(sb.y0*h), int(sb.x1*w), int(sb.y1*h))
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

func TestSegmentDigits(t *testing.T) {
	rec := &SegmentRecognizer{Brightness: 60, Gamma: 2.0, OnRatio: 0.5}
	digits := map[int]byte{
		M_TL | M_TM | M_TR | M_BR | M_BM | M_BL:        '0',
		M_TR | M_BR:                                    '1',
		M_TM | M_TR | M_BM | M_BL | M_MM:               '2',
		M_TM | M_TR | M_BR | M_BM | M_MM:               '3',
		M_TL | M_TR | M_BR | M_MM:                      '4',
		M_TL | M_TM | M_BR | M_BM | M_MM:               '5',
		M_TL | M_TM | M_BR | M_BM | M_BL | M_MM:        '6',
		M_TM | M_TR | M_BR:                             '7',
		M_TL | M_TM | M_TR | M_BR | M_BM | M_BL | M_MM: '8',
		M_TL | M_TM | M_TR | M_BR | M_BM | M_MM:        '9',
	}
	for mask, want := range digits {
		r, err := rec.Recognize(drawMask(mask))
		if err != nil {
			t.Fatalf("digit %c: %v", want, err)
		}
		if r.Char != want {
			t.Errorf("digit: got %c want %c", r.Char, want)
		}
		if r.Confidence <= DefaultThreshold {
			t.Errorf("digit %c: confidence got %v want > %v", want, r.Confidence, DefaultThreshold)
		}
	}
}

func TestSegmentDark(t *testing.T) {
	rec := &SegmentRecognizer{Brightness: 60, Gamma: 2.0, OnRatio: 0.5}
	r, err := rec.Recognize(image.NewGray(image.Rect(0, 0, 25, 40)))
	if err != nil {
		t.Fatalf("dark: %v", err)
	}
	if r.Recognized() {
		t.Errorf("dark region: got %c want no digit", r.Char)
	}
}

func TestSegmentUnmatched(t *testing.T) {
	rec := &SegmentRecognizer{Brightness: 60, Gamma: 2.0, OnRatio: 0.5}
	// Only the middle segment lit matches no digit.
	r, err := rec.Recognize(drawMask(M_MM))
	if err != nil {
		t.Fatalf("unmatched: %v", err)
	}
	if r.Recognized() {
		t.Errorf("unmatched pattern: got %c want no digit", r.Char)
	}
}

func TestThreshold(t *testing.T) {
	rec, err := New(Config{Threshold: 2.0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// An impossible threshold turns every reading into no digit.
	r, err := rec.Recognize(drawMask(M_TR | M_BR))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if r.Recognized() {
		t.Errorf("below threshold: got %c want no digit", r.Char)
	}
}
