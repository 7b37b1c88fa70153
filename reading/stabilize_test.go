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
)

func good(v float64, sec int64) Candidate {
	return Candidate{Value: v, OK: true, Confidence: 1.0, When: time.Unix(sec, 0)}
}

func bad(sec int64) Candidate {
	return Candidate{When: time.Unix(sec, 0)}
}

func TestStabilizeAgreement(t *testing.T) {
	s := NewStabilizer(StabilizeConfig{})
	st := s.Add(good(45, 1))
	if st.Valid {
		t.Errorf("one candidate: got valid, want invalid")
	}
	st = s.Add(good(45, 2))
	if st.Valid {
		t.Errorf("two candidates: got valid, want invalid")
	}
	st = s.Add(good(45, 3))
	if !st.Valid {
		t.Fatalf("three agreeing candidates: got invalid, want valid")
	}
	if st.Value != 45 {
		t.Errorf("value: got %v want %v", st.Value, 45.0)
	}
	if st.LastChange != time.Unix(3, 0) {
		t.Errorf("last change: got %v want %v", st.LastChange, time.Unix(3, 0))
	}
}

func TestStabilizeMisread(t *testing.T) {
	s := NewStabilizer(StabilizeConfig{})
	s.Add(good(45, 1))
	s.Add(good(45, 2))
	s.Add(good(45, 3))
	// A single wild misread must not move the value.
	st := s.Add(good(78, 4))
	if st.Value != 45 {
		t.Errorf("after misread: got %v want %v", st.Value, 45.0)
	}
	if !st.Valid {
		t.Errorf("after misread: got invalid, want valid")
	}
}

func TestStabilizeChange(t *testing.T) {
	s := NewStabilizer(StabilizeConfig{})
	for i := int64(1); i <= 5; i++ {
		s.Add(good(45, i))
	}
	s.Add(good(46, 6))
	s.Add(good(46, 7))
	st := s.Add(good(46, 8))
	if st.Value != 46 {
		t.Errorf("after agreement on new value: got %v want %v", st.Value, 46.0)
	}
	if st.LastChange != time.Unix(8, 0) {
		t.Errorf("last change: got %v want %v", st.LastChange, time.Unix(8, 0))
	}
}

func TestStabilizeNoise(t *testing.T) {
	s := NewStabilizer(StabilizeConfig{Tolerance: 0.5, Noise: 0.5})
	for i := int64(1); i <= 5; i++ {
		s.Add(good(45, i))
	}
	changed := s.Current().LastChange
	// Sub-noise drift is absorbed.
	s.Add(good(45.3, 6))
	s.Add(good(45.3, 7))
	st := s.Add(good(45.3, 8))
	if st.Value != 45 {
		t.Errorf("sub-noise drift: got %v want %v", st.Value, 45.0)
	}
	if st.LastChange != changed {
		t.Errorf("sub-noise drift moved last change: got %v want %v", st.LastChange, changed)
	}
}

func TestStabilizeStale(t *testing.T) {
	s := NewStabilizer(StabilizeConfig{Stale: 30})
	for i := int64(1); i <= 3; i++ {
		s.Add(good(45, i))
	}
	st := s.Add(bad(20))
	if !st.Valid {
		t.Fatalf("recent reading: got invalid, want valid")
	}
	st = s.Add(bad(40))
	if st.Valid {
		t.Errorf("stale reading: got valid, want invalid")
	}
	// The last value is retained for display.
	if st.Value != 45 {
		t.Errorf("stale value: got %v want %v", st.Value, 45.0)
	}
	// A stream of fresh candidates recovers validity.
	s.Add(good(50, 41))
	s.Add(good(50, 42))
	st = s.Add(good(50, 43))
	if !st.Valid {
		t.Errorf("recovered reading: got invalid, want valid")
	}
	if st.Value != 50 {
		t.Errorf("recovered value: got %v want %v", st.Value, 50.0)
	}
}

func TestStabilizeNeverValidWithoutAgreement(t *testing.T) {
	s := NewStabilizer(StabilizeConfig{})
	vals := []float64{45, 52, 61, 45, 70, 52, 61}
	for i, v := range vals {
		st := s.Add(good(v, int64(i+1)))
		if st.Valid {
			t.Fatalf("disagreeing candidates: got valid at %d", i)
		}
	}
}
