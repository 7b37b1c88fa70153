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
	"math"
	"time"

	"github.com/aamcrae/HeaterMan/lib"
)

// Stable is the reported temperature. Valid goes false when readable
// frames stop arriving for longer than the staleness timeout; the
// last value is retained so the host can still display it, flagged
// as untrustworthy.
type Stable struct {
	Value      float64
	Valid      bool
	LastChange time.Time
}

// StabilizeConfig is the stabilize section of the config file.
type StabilizeConfig struct {
	Window    int     `yaml:"window"`
	Agree     int     `yaml:"agree"`
	Tolerance float64 `yaml:"tolerance"`
	Noise     float64 `yaml:"noise"`
	Stale     int     `yaml:"stale"`
}

const defaultWindow = 5
const defaultAgree = 3
const defaultTolerance = 0.5
const defaultNoise = 0.5
const defaultStale = 30

// Stabilizer holds a sliding window of recent candidates and votes
// on them. Single-frame misreads (glare, motion blur, a digit caught
// mid-transition) are common, so the reported value only moves when
// a majority of the window agrees on a new one.
type Stabilizer struct {
	window    int
	agree     int
	tolerance float64
	noise     float64
	stale     time.Duration

	hist     []Candidate
	cur      Stable
	tracking bool
	lastGood time.Time
}

// NewStabilizer creates a stabilizer with the configured window.
func NewStabilizer(conf StabilizeConfig) *Stabilizer {
	s := &Stabilizer{
		window:    lib.ConfigOrDefault(conf.Window, defaultWindow),
		agree:     lib.ConfigOrDefault(conf.Agree, defaultAgree),
		tolerance: lib.ConfigOrDefault(conf.Tolerance, defaultTolerance),
		noise:     lib.ConfigOrDefault(conf.Noise, defaultNoise),
		stale:     time.Duration(lib.ConfigOrDefault(conf.Stale, defaultStale)) * time.Second,
	}
	if s.agree > s.window {
		s.agree = s.window
	}
	return s
}

// Add feeds one candidate into the window and returns the updated
// stable temperature. At most one update occurs per call.
//
// A new value is accepted only when at least the configured number of
// candidates in the window agree within the tolerance band, and the
// agreed value differs from the current one by more than the noise
// threshold. Unreadable candidates never agree with anything; enough
// of them in a row mark the reading invalid without erasing it.
func (s *Stabilizer) Add(c Candidate) Stable {
	s.hist = append(s.hist, c)
	if len(s.hist) > s.window {
		s.hist = s.hist[1:]
	}
	if c.OK {
		s.lastGood = c.When
	}
	if value, ok := s.vote(); ok {
		if !s.tracking || math.Abs(value-s.cur.Value) > s.noise {
			s.cur.Value = value
			s.cur.LastChange = c.When
			s.tracking = true
		}
	}
	s.cur.Valid = s.tracking && !s.lastGood.IsZero() && c.When.Sub(s.lastGood) <= s.stale
	return s.cur
}

// Current returns the stable temperature without feeding a candidate.
func (s *Stabilizer) Current() Stable {
	return s.cur
}

// vote finds the value that the most window candidates agree on.
// Returns the mean of the agreeing candidates, and whether the
// agreement count reached the configured majority.
func (s *Stabilizer) vote() (float64, bool) {
	best := 0
	bestMean := 0.0
	for _, c := range s.hist {
		if !c.OK {
			continue
		}
		count := 0
		sum := 0.0
		for _, o := range s.hist {
			if o.OK && math.Abs(o.Value-c.Value) <= s.tolerance {
				count++
				sum += o.Value
			}
		}
		if count > best {
			best = count
			bestMean = sum / float64(count)
		}
	}
	return bestMean, best >= s.agree
}
