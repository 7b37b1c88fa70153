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

// package reading assembles per-digit recognition results into
// candidate temperatures, and stabilizes the stream of candidates
// into a single trustworthy value.
//
// The package is configured under the 'reading' and 'stabilize'
// sections:
//   reading:
//     decimals: <digits after the decimal point>  # Optional, default 0
//     min: <lowest plausible value>               # Optional, default 10
//     max: <highest plausible value>              # Optional, default 80
//   stabilize:
//     window: <candidates considered>             # Optional, default 5
//     agree: <candidates that must agree>         # Optional, default 3
//     tolerance: <agreement band in degrees>      # Optional, default 0.5
//     noise: <minimum reportable change>          # Optional, default 0.5
//     stale: <seconds before a reading goes stale> # Optional, default 30

package reading

import (
	"math"
	"time"

	"github.com/aamcrae/HeaterMan/lib"
	"github.com/aamcrae/HeaterMan/ocr"
)

// Candidate is one frame's assembled temperature. OK is false when
// the frame could not be read; the value is then meaningless.
type Candidate struct {
	Value      float64
	OK         bool
	Confidence float64
	When       time.Time
}

// Config is the reading section of the config file.
type Config struct {
	Decimals  int     `yaml:"decimals"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Threshold float64 `yaml:"threshold"`
}

// Default plausible range for a domestic water heater display.
const defaultMin = 10
const defaultMax = 80

// Assembler combines the ordered per-digit readings of one frame
// into a candidate temperature.
type Assembler struct {
	decimals  int
	min, max  float64
	threshold float64
}

// NewAssembler creates an assembler for the configured number format
// and plausible range.
func NewAssembler(conf Config) *Assembler {
	return &Assembler{
		decimals:  conf.Decimals,
		min:       lib.ConfigOrDefault(conf.Min, defaultMin),
		max:       lib.ConfigOrDefault(conf.Max, defaultMax),
		threshold: lib.ConfigOrDefault(conf.Threshold, ocr.DefaultThreshold),
	}
}

// Assemble concatenates the digits in ordinal order and applies the
// plausibility filter. Any digit that is missing or below the
// confidence threshold makes the whole candidate unreadable: a value
// assembled around a gap can be wrong by an order of magnitude, which
// is far more dangerous downstream than a rejected frame.
// The aggregate confidence is that of the weakest digit.
func (a *Assembler) Assemble(digits []ocr.DigitReading, when time.Time) Candidate {
	if len(digits) == 0 {
		return Candidate{When: when}
	}
	confidence := 1.0
	value := 0.0
	for _, d := range digits {
		if !d.Recognized() || d.Confidence < a.threshold {
			return Candidate{When: when}
		}
		if d.Confidence < confidence {
			confidence = d.Confidence
		}
		value = value*10 + float64(d.Char-'0')
	}
	value /= math.Pow10(a.decimals)
	if value < a.min || value > a.max {
		return Candidate{When: when}
	}
	return Candidate{Value: value, OK: true, Confidence: confidence, When: when}
}
