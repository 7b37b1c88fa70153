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

package reading

import (
	"time"

	"testing"

	"github.com/aamcrae/HeaterMan/ocr"
)

func digits(conf ...float64) []ocr.DigitReading {
	d := make([]ocr.DigitReading, 0, len(conf)/2)
	for i := 0; i < len(conf); i += 2 {
		d = append(d, ocr.DigitReading{Char: byte('0' + int(conf[i])), Confidence: conf[i+1]})
	}
	return d
}

func TestAssemble(t *testing.T) {
	a := NewAssembler(Config{})
	now := time.Unix(100, 0)
	c := a.Assemble(digits(4, 0.9, 5, 0.7), now)
	if !c.OK {
		t.Fatalf("readable frame: got unreadable")
	}
	if c.Value != 45 {
		t.Errorf("value: got %v want %v", c.Value, 45.0)
	}
	if c.Confidence != 0.7 {
		t.Errorf("confidence: got %v want %v", c.Confidence, 0.7)
	}
	if c.When != now {
		t.Errorf("when: got %v want %v", c.When, now)
	}
}

func TestAssembleDecimals(t *testing.T) {
	a := NewAssembler(Config{Decimals: 1})
	c := a.Assemble(digits(4, 0.9, 5, 0.9, 5, 0.9), time.Unix(100, 0))
	if !c.OK {
		t.Fatalf("readable frame: got unreadable")
	}
	if c.Value != 45.5 {
		t.Errorf("value: got %v want %v", c.Value, 45.5)
	}
}

func TestAssembleMissingDigit(t *testing.T) {
	a := NewAssembler(Config{})
	d := digits(4, 0.9, 5, 0.9)
	d[1].Char = ocr.NoDigit
	c := a.Assemble(d, time.Unix(100, 0))
	if c.OK {
		// "4 " must never read as 4.
		t.Errorf("missing digit: got %v want unreadable", c.Value)
	}
}

func TestAssembleLowConfidence(t *testing.T) {
	a := NewAssembler(Config{})
	c := a.Assemble(digits(4, 0.9, 5, 0.1), time.Unix(100, 0))
	if c.OK {
		t.Errorf("low confidence digit: got %v want unreadable", c.Value)
	}
}

func TestAssembleRange(t *testing.T) {
	a := NewAssembler(Config{})
	c := a.Assemble(digits(9, 0.9, 9, 0.9), time.Unix(100, 0))
	if c.OK {
		t.Errorf("implausible value: got %v want unreadable", c.Value)
	}
	c = a.Assemble(digits(0, 0.9, 5, 0.9), time.Unix(100, 0))
	if c.OK {
		t.Errorf("implausible value: got %v want unreadable", c.Value)
	}
	c = a.Assemble(nil, time.Unix(100, 0))
	if c.OK {
		t.Errorf("no digits: got %v want unreadable", c.Value)
	}
}
