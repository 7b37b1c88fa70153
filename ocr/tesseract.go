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
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Upscaling factor before handing the region to Tesseract; it
// performs poorly on very small glyphs.
const tessScale = 5

// Tesseract frequently confuses LED digits with lookalike
// characters. Readings repaired through this map are accepted at
// reduced confidence.
var repairMap = map[string]byte{
	"/": '1', "l": '1', "I": '1', "|": '1', "]": '1', "[": '1',
	"(": '1', ")": '1', "f": '1', "i": '1', "t": '1',
	"D": '0', "O": '0', "o": '0', "Q": '0', "C": '0', "U": '0',
	"Z": '2', "z": '2', "?": '2',
	"s": '5', "S": '5', "$": '5',
	"B": '8', "&": '8',
	"A": '4',
	"g": '9', "q": '9',
	"{": '7', "}": '7',
}

const repairedConfidence = 0.6

// TesseractRecognizer recognizes digits using the Tesseract OCR
// library in single-character page segmentation mode.
type TesseractRecognizer struct {
	brightness int
	gamma      float64
	client     *gosseract.Client
}

// NewTesseract initialises a Tesseract client for digit recognition.
// No character whitelist is set: lookalike misreads must come through
// as-is so the repair map can fix them.
func NewTesseract(brightness int, gamma float64) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract page mode: %v", err)
	}
	return &TesseractRecognizer{brightness: brightness, gamma: gamma, client: client}, nil
}

// Recognize normalizes the region (grayscale, binarize, invert to
// black-on-white, upscale) and runs Tesseract over it. An engine
// failure is reported as ErrRecognitionUnavailable; the cycle treats
// it as an unreadable frame rather than aborting.
func (t *TesseractRecognizer) Recognize(img image.Image) (DigitReading, error) {
	g := prepare(img, t.gamma)
	if peak(g) < t.brightness {
		return DigitReading{Char: NoDigit}, nil
	}
	bin := binarize(g, otsu(g))
	// Tesseract expects dark text on a light background.
	inv := imaging.Invert(bin)
	big := imaging.Resize(inv, bin.Bounds().Dx()*tessScale, 0, imaging.NearestNeighbor)
	var buf bytes.Buffer
	if err := png.Encode(&buf, big); err != nil {
		return DigitReading{}, fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return DigitReading{}, fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
	}
	text, err := t.client.Text()
	if err != nil {
		return DigitReading{}, fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
	}
	return classify(text), nil
}

// classify maps Tesseract's raw text to a digit reading. The plain
// text API carries no per-character confidence, so clean digits are
// reported at full confidence and repaired lookalikes at a fixed
// discount; the confidence threshold only separates those two classes.
func classify(text string) DigitReading {
	text = strings.TrimSpace(text)
	if len(text) == 1 && text[0] >= '0' && text[0] <= '9' {
		return DigitReading{Char: text[0], Confidence: 1.0}
	}
	if ch, ok := repairMap[text]; ok {
		return DigitReading{Char: ch, Confidence: repairedConfidence}
	}
	return DigitReading{Char: NoDigit}
}

// Close releases the Tesseract client.
func (t *TesseractRecognizer) Close() error {
	return t.client.Close()
}
