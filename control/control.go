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

// package control decides when to switch the heater on or off.
//
// A classic hysteresis band is applied around the target setpoint:
// heat when the stable reading drops below target - deadband, stop
// when it rises above target + deadband. The policy never commands
// anything from an invalid reading - losing sight of the panel means
// losing the authority to act on it.
//
// The package is configured under the 'control' section:
//   control:
//     target: <initial setpoint>           # Optional, default 50
//     deadband: <hysteresis in degrees>    # Optional, default 2
//     interval: <min seconds between commands> # Optional, default 60

package control

import (
	"time"

	"github.com/aamcrae/HeaterMan/lib"
	"github.com/aamcrae/HeaterMan/reading"
)

// Decision is the outcome of one policy evaluation.
type Decision int

const (
	NoChange Decision = iota
	TurnOn
	TurnOff
)

func (d Decision) String() string {
	switch d {
	case TurnOn:
		return "on"
	case TurnOff:
		return "off"
	default:
		return "nochange"
	}
}

// State is the control state of one heater. It is owned by the policy:
// only Evaluate and Commit mutate it, once per cycle, so a failed
// dispatch never leaves a half-updated state behind.
type State struct {
	Target      float64   // Requested setpoint
	Heating     bool      // Commanded heater state
	LastCommand time.Time // When the last command was committed
	Degraded    bool      // True when vision input cannot be trusted
}

// Config is the control section of the config file.
type Config struct {
	Target   float64 `yaml:"target"`
	DeadBand float64 `yaml:"deadband"`
	Interval int     `yaml:"interval"`
}

const defaultTarget = 50
const defaultDeadBand = 2
const defaultInterval = 60

// Policy evaluates the stable reading against the setpoint.
type Policy struct {
	deadBand float64
	interval time.Duration
}

// NewPolicy creates a policy and the initial control state.
func NewPolicy(conf Config) (*Policy, *State) {
	p := &Policy{
		deadBand: lib.ConfigOrDefault(conf.DeadBand, defaultDeadBand),
		interval: time.Duration(lib.ConfigOrDefault(conf.Interval, defaultInterval)) * time.Second,
	}
	st := &State{Target: lib.ConfigOrDefault(conf.Target, float64(defaultTarget))}
	return p, st
}

// Evaluate decides whether the heater state should change.
// An invalid reading flags the state degraded and decides nothing;
// a valid one clears the flag. Commands identical to the current
// commanded state are not repeated, and a state change is suppressed
// until the minimum inter-command interval has passed, protecting the
// actuator (and the heater's relay) from chatter.
func (p *Policy) Evaluate(st *State, r reading.Stable, now time.Time) Decision {
	if !r.Valid {
		st.Degraded = true
		return NoChange
	}
	st.Degraded = false
	var want Decision
	switch {
	case r.Value < st.Target-p.deadBand:
		want = TurnOn
	case r.Value > st.Target+p.deadBand:
		want = TurnOff
	default:
		return NoChange
	}
	if (want == TurnOn) == st.Heating {
		return NoChange
	}
	if !st.LastCommand.IsZero() && now.Sub(st.LastCommand) < p.interval {
		return NoChange
	}
	return want
}

// Commit records a successfully dispatched decision. It is not called
// when dispatch fails, so the commanded state keeps reflecting what
// the heater was last told, and a later cycle re-evaluates.
func (p *Policy) Commit(st *State, d Decision, now time.Time) {
	switch d {
	case TurnOn:
		st.Heating = true
	case TurnOff:
		st.Heating = false
	default:
		return
	}
	st.LastCommand = now
}
