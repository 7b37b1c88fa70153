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

package control

import (
	"time"

	"testing"

	"github.com/aamcrae/HeaterMan/reading"
)

func valid(v float64) reading.Stable {
	return reading.Stable{Value: v, Valid: true}
}

func TestHysteresis(t *testing.T) {
	p, st := NewPolicy(Config{Target: 50, DeadBand: 2})
	now := time.Unix(1000, 0)
	if d := p.Evaluate(st, valid(49), now); d != NoChange {
		t.Errorf("in band: got %v want %v", d, NoChange)
	}
	if d := p.Evaluate(st, valid(52), now); d != NoChange {
		t.Errorf("at band edge: got %v want %v", d, NoChange)
	}
	d := p.Evaluate(st, valid(47), now)
	if d != TurnOn {
		t.Fatalf("below band: got %v want %v", d, TurnOn)
	}
	p.Commit(st, d, now)
	if !st.Heating {
		t.Fatalf("after commit: heating not set")
	}
	// While heating, in-band readings change nothing.
	now = now.Add(time.Minute * 2)
	if d := p.Evaluate(st, valid(50), now); d != NoChange {
		t.Errorf("heating in band: got %v want %v", d, NoChange)
	}
	d = p.Evaluate(st, valid(53), now)
	if d != TurnOff {
		t.Fatalf("above band: got %v want %v", d, TurnOff)
	}
	p.Commit(st, d, now)
	if st.Heating {
		t.Errorf("after commit: heating still set")
	}
}

func TestNoRepeatCommand(t *testing.T) {
	p, st := NewPolicy(Config{Target: 50, DeadBand: 2})
	now := time.Unix(1000, 0)
	// Already off; a hot reading does not re-send off.
	if d := p.Evaluate(st, valid(60), now); d != NoChange {
		t.Errorf("already off: got %v want %v", d, NoChange)
	}
	p.Commit(st, p.Evaluate(st, valid(40), now), now)
	now = now.Add(time.Minute * 2)
	if d := p.Evaluate(st, valid(40), now); d != NoChange {
		t.Errorf("already on: got %v want %v", d, NoChange)
	}
}

func TestCommandDebounce(t *testing.T) {
	p, st := NewPolicy(Config{Target: 50, DeadBand: 2, Interval: 60})
	now := time.Unix(1000, 0)
	p.Commit(st, p.Evaluate(st, valid(40), now), now)
	// An opposite decision inside the interval is suppressed.
	if d := p.Evaluate(st, valid(60), now.Add(time.Second*30)); d != NoChange {
		t.Errorf("within interval: got %v want %v", d, NoChange)
	}
	if d := p.Evaluate(st, valid(60), now.Add(time.Second*61)); d != TurnOff {
		t.Errorf("after interval: got %v want %v", d, TurnOff)
	}
}

func TestInvalidReading(t *testing.T) {
	p, st := NewPolicy(Config{Target: 50, DeadBand: 2})
	now := time.Unix(1000, 0)
	d := p.Evaluate(st, reading.Stable{Value: 10, Valid: false}, now)
	if d != NoChange {
		t.Fatalf("invalid reading: got %v want %v", d, NoChange)
	}
	if !st.Degraded {
		t.Errorf("invalid reading: degraded not set")
	}
	p.Evaluate(st, valid(50), now)
	if st.Degraded {
		t.Errorf("valid reading: degraded still set")
	}
}

func TestFailedDispatchKeepsState(t *testing.T) {
	p, st := NewPolicy(Config{Target: 50, DeadBand: 2})
	now := time.Unix(1000, 0)
	d := p.Evaluate(st, valid(40), now)
	if d != TurnOn {
		t.Fatalf("below band: got %v want %v", d, TurnOn)
	}
	// Dispatch failed; no commit. The next cycle re-evaluates.
	d = p.Evaluate(st, valid(40), now.Add(time.Second))
	if d != TurnOn {
		t.Errorf("retry after failed dispatch: got %v want %v", d, TurnOn)
	}
	if st.Heating {
		t.Errorf("uncommitted decision changed state")
	}
}
