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

// package ocr recognizes single digits in cropped panel regions.
//
// Two recognizer engines are provided. The default 'segment' engine
// samples the seven segments of an LED/LCD digit directly and maps the
// lit pattern to a character. The 'tesseract' engine hands the
// normalized region to the Tesseract OCR library.
//
// The package is configured under the 'ocr' section:
//   ocr:
//     engine: <segment or tesseract>   # Optional, default segment
//     threshold: <confidence 0-1>      # Optional, default 0.25
//     brightness: <peak level 0-255>   # Optional, default 60
//     gamma: <contrast enhancement>    # Optional, default 2.0
//     onratio: <segment lit ratio 0-1> # Optional, default 0.5

package ocr

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/aamcrae/HeaterMan/lib"
)

// ErrRecognitionUnavailable flags a failure of the recognition engine
// itself (as opposed to a readable image that contains no digit).
// It is recoverable; the cycle treats the reading as unreadable.
var ErrRecognitionUnavailable = errors.New("recognition unavailable")

// NoDigit is the character reported when no digit could be
// recognized with sufficient confidence.
const NoDigit byte = 0

// DigitReading is the result of recognizing one region.
type DigitReading struct {
	ROI        string  // Name of the region
	Char       byte    // '0'-'9', or NoDigit
	Confidence float64 // 0-1
}

// Recognized returns true if the reading contains a digit.
func (d DigitReading) Recognized() bool {
	return d.Char != NoDigit
}

// Recognizer turns the image of a single region into a digit reading.
// Implementations must be safe to call repeatedly from a single
// goroutine; they are not required to be concurrency safe.
type Recognizer interface {
	Recognize(img image.Image) (DigitReading, error)
}

// Config is the ocr section of the config file.
type Config struct {
	Engine     string  `yaml:"engine"`
	Threshold  float64 `yaml:"threshold"`
	Brightness int     `yaml:"brightness"`
	Gamma      float64 `yaml:"gamma"`
	OnRatio    float64 `yaml:"onratio"`
}

// DefaultThreshold is the default confidence threshold, shared with
// the reading assembler's weakest-link check.
const DefaultThreshold = 0.25

const defaultBrightness = 60
const defaultGamma = 2.0
const defaultOnRatio = 0.5

// New creates the configured recognizer engine, wrapped so that
// readings below the confidence threshold are reported as NoDigit
// rather than propagating low confidence guesses.
func New(conf Config) (Recognizer, error) {
	brightness := lib.ConfigOrDefault(conf.Brightness, defaultBrightness)
	gamma := lib.ConfigOrDefault(conf.Gamma, defaultGamma)
	var eng Recognizer
	switch lib.ConfigOrDefault(conf.Engine, "segment") {
	case "segment":
		eng = &SegmentRecognizer{
			Brightness: brightness,
			Gamma:      gamma,
			OnRatio:    lib.ConfigOrDefault(conf.OnRatio, defaultOnRatio),
		}
	case "tesseract":
		t, err := NewTesseract(brightness, gamma)
		if err != nil {
			return nil, err
		}
		eng = t
	default:
		return nil, fmt.Errorf("%s: unknown ocr engine", conf.Engine)
	}
	return &thresholded{eng: eng, min: lib.ConfigOrDefault(conf.Threshold, DefaultThreshold)}, nil
}

// thresholded rejects low confidence readings from the
// underlying engine.
type thresholded struct {
	eng Recognizer
	min float64
}

func (t *thresholded) Recognize(img image.Image) (DigitReading, error) {
	r, err := t.eng.Recognize(img)
	if err != nil {
		return r, err
	}
	if r.Recognized() && r.Confidence < t.min {
		r.Char = NoDigit
	}
	return r, nil
}

// Close releases the engine if it holds external resources
// (the Tesseract client does).
func (t *thresholded) Close() error {
	if c, ok := t.eng.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
