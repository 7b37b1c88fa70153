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

// Package heater runs the recognition and control pipeline for one
// water heater: fetch a frame, extract the digit regions, recognize,
// assemble, stabilize, decide and dispatch. Each cycle runs to
// completion before the next begins; all blocking steps are bounded
// by the cycle context.

package heater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/aamcrae/HeaterMan/actuator"
	"github.com/aamcrae/HeaterMan/control"
	"github.com/aamcrae/HeaterMan/frame"
	"github.com/aamcrae/HeaterMan/lib"
	"github.com/aamcrae/HeaterMan/ocr"
	"github.com/aamcrae/HeaterMan/overlay"
	"github.com/aamcrae/HeaterMan/reading"
	"github.com/aamcrae/HeaterMan/roi"
)

// Snapshot is the externally visible state of the device. It is
// updated once per cycle, after the cycle has fully committed.
type Snapshot struct {
	Temperature reading.Stable
	Mode        ocr.Mode
	Target      float64
	Heating     bool
	Degraded    bool
	Outcome     actuator.Outcome
	Cycles      int
	Skipped     int
	Unreadable  int
}

// Device is the pipeline for one heater.
type Device struct {
	conf      Config
	poll      time.Duration
	keepAlive time.Duration
	trace     bool

	source    frame.Source
	rec       ocr.Recognizer
	modes     *ocr.ModeDetector
	asm       *reading.Assembler
	stab      *reading.Stabilizer
	policy    *control.Policy
	ctl       *control.State
	disp      *actuator.Dispatcher
	annotator *overlay.Annotator

	digits   []roi.ROI
	disabled map[string]bool
	lastWake time.Time

	mu     sync.Mutex
	target float64
	snap   Snapshot
}

// New creates a device from its capabilities. The frame source,
// recognizer and command sender are passed in rather than built here
// so the pipeline does not depend on any particular camera, OCR
// library or transport.
func New(conf Config, source frame.Source, rec ocr.Recognizer, sender actuator.Sender, trace bool) (*Device, error) {
	if err := roi.Validate(conf.Digits); err != nil {
		return nil, fmt.Errorf("digits: %v", err)
	}
	policy, ctl := control.NewPolicy(conf.Control)
	d := &Device{
		conf:      conf,
		poll:      time.Duration(lib.ConfigOrDefault(conf.Poll, defaultPoll)) * time.Millisecond,
		keepAlive: time.Duration(conf.KeepAlive) * time.Second,
		trace:     trace,
		source:    source,
		rec:       rec,
		asm:       reading.NewAssembler(conf.Reading),
		stab:      reading.NewStabilizer(conf.Stabilize),
		policy:    policy,
		ctl:       ctl,
		disp:      actuator.NewDispatcher(conf.Actuator, sender),
		digits:    roi.Sort(conf.Digits),
		disabled:  make(map[string]bool),
		target:    ctl.Target,
	}
	if conf.Glyphs.Setting != nil || conf.Glyphs.Low != nil || conf.Glyphs.Half != nil || conf.Glyphs.Full != nil {
		d.modes = ocr.NewModeDetector(conf.Glyphs, conf.OCR.Gamma)
	}
	if len(conf.Debug) > 0 {
		a, err := overlay.NewAnnotator()
		if err != nil {
			return nil, err
		}
		d.annotator = a
	}
	d.snap.Mode = ocr.ModeStandby
	d.snap.Target = ctl.Target
	return d, nil
}

// Run polls the pipeline until the context is cancelled. If a cycle
// overruns the poll interval the missed ticks are dropped, never
// queued, so a stalled camera cannot build up a backlog of work.
func (d *Device) Run(ctx context.Context) {
	log.Printf("Starting heater pipeline, poll interval %s", d.poll.String())
	tick := time.NewTicker(d.poll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			d.Cycle(ctx, now)
			d.dropPending(tick.C, now)
		}
	}
}

// dropPending discards a tick that fired while the cycle was still
// running. The ticker buffers one tick, which would otherwise run a
// cycle back to back with the overrunning one.
func (d *Device) dropPending(tick <-chan time.Time, started time.Time) {
	elapsed := time.Since(started)
	if elapsed <= d.poll {
		return
	}
	select {
	case <-tick:
	default:
	}
	skipped := int(elapsed / d.poll)
	d.mu.Lock()
	d.snap.Skipped += skipped
	d.mu.Unlock()
	log.Printf("cycle overran poll interval (%s), skipping %d", elapsed.Truncate(time.Millisecond), skipped)
}

// Cycle runs one complete pass of the pipeline. Transient faults (a
// failed fetch, an unreadable frame, an OCR hiccup) are absorbed here
// as an unreadable candidate; only actuator failures after retries
// are surfaced, through the dispatch outcome.
func (d *Device) Cycle(ctx context.Context, now time.Time) {
	mode := ocr.ModeStandby
	var cand reading.Candidate
	var results []ocr.DigitReading
	f, err := d.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("frame fetch: %v", err)
		cand = reading.Candidate{When: now}
	} else {
		if d.modes != nil {
			m, err := d.modes.Detect(f.Img)
			if err != nil {
				log.Printf("mode detect: %v", err)
			} else {
				mode = m
			}
		}
		results = d.recognize(f)
		cand = d.asm.Assemble(results, f.When)
	}
	stable := d.stab.Add(cand)
	if !cand.OK {
		d.saveBad(f, results, mode)
	}

	var outcome *actuator.Outcome
	// Wake a blanked panel so the next cycles can read it again.
	if d.keepAlive > 0 && !stable.Valid && d.disp.Mapped(actuator.CmdWake) &&
		now.Sub(d.lastWake) >= d.keepAlive {
		d.lastWake = now
		out := d.disp.Dispatch(ctx, actuator.CmdWake)
		if !out.OK {
			log.Printf("keep-alive: %v", out.Err)
		}
		outcome = &out
	}

	d.mu.Lock()
	d.ctl.Target = d.target
	d.mu.Unlock()

	policyInput := stable
	if mode == ocr.ModeSetting {
		// While the panel is in its setting menu the digits show the
		// target being adjusted, not the tank temperature.
		policyInput.Valid = false
	}
	decision := d.policy.Evaluate(d.ctl, policyInput, now)
	if decision != control.NoChange {
		cmd := actuator.CmdOff
		if decision == control.TurnOn {
			cmd = actuator.CmdOn
		}
		out := d.disp.Dispatch(ctx, cmd)
		if out.OK {
			d.policy.Commit(d.ctl, decision, now)
			if d.trace {
				log.Printf("commanded heater %s (reading %s, target %s)",
					decision, lib.FmtFloat(stable.Value), lib.FmtFloat(d.ctl.Target))
			}
		} else {
			log.Printf("dispatch: %v", out.Err)
		}
		outcome = &out
	}

	d.mu.Lock()
	d.snap.Temperature = stable
	d.snap.Mode = mode
	d.snap.Target = d.ctl.Target
	d.snap.Heating = d.ctl.Heating
	d.snap.Degraded = d.ctl.Degraded
	if outcome != nil {
		d.snap.Outcome = *outcome
	}
	d.snap.Cycles++
	if !cand.OK {
		d.snap.Unreadable++
	}
	d.mu.Unlock()
}

// recognize extracts and recognizes each digit region. A region that
// falls outside the frame is a configuration error: it is reported
// once, then skipped on subsequent cycles, which keeps every candidate
// unreadable (and the reading stale) until the region is fixed -
// preferable to assembling a wrong-magnitude value from the digits
// that remain.
func (d *Device) recognize(f frame.Frame) []ocr.DigitReading {
	results := make([]ocr.DigitReading, 0, len(d.digits))
	for _, r := range d.digits {
		dr := ocr.DigitReading{ROI: r.Name}
		if !d.disabled[r.Name] {
			crop, err := roi.Extract(f.Img, r)
			if err != nil {
				if errors.Is(err, roi.ErrInvalidRegion) {
					log.Printf("disabling region until reconfigured: %v", err)
					d.disabled[r.Name] = true
				} else {
					log.Printf("region %s: %v", r.Name, err)
				}
			} else {
				rec, err := d.rec.Recognize(crop)
				if err != nil {
					// Recoverable; this frame reads as unreadable.
					log.Printf("region %s: %v", r.Name, err)
				} else {
					dr.Char, dr.Confidence = rec.Char, rec.Confidence
				}
			}
		}
		results = append(results, dr)
	}
	return results
}

// saveBad writes an annotated copy of an unreadable frame for later
// analysis. The file is overwritten each time so a flaky camera
// cannot fill the disk.
func (d *Device) saveBad(f frame.Frame, results []ocr.DigitReading, mode ocr.Mode) {
	if d.annotator == nil || f.Img == nil {
		return
	}
	regions := make([]overlay.Region, 0, len(d.digits))
	for i, r := range d.digits {
		reg := overlay.Region{Rect: r.Rect(), Label: r.Name}
		if i < len(results) && results[i].Recognized() {
			reg.Good = true
			reg.Label = fmt.Sprintf("%s=%c", r.Name, results[i].Char)
		}
		regions = append(regions, reg)
	}
	img := d.annotator.Render(f.Img, regions, fmt.Sprintf("unreadable mode=%s", mode))
	name := filepath.Join(d.conf.Debug, "bad.jpg")
	if err := frame.Save(name, frame.Frame{Img: img}); err != nil {
		log.Printf("%s: %v", name, err)
	}
}

// Snapshot returns a copy of the externally visible state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// Command dispatches a host initiated command, such as a setpoint
// nudge or a mode change, outside the control loop. The dispatcher
// serializes it against the loop's own sends.
func (d *Device) Command(ctx context.Context, cmd actuator.Command) actuator.Outcome {
	out := d.disp.Dispatch(ctx, cmd)
	if !out.OK {
		log.Printf("command: %v", out.Err)
	}
	d.mu.Lock()
	d.snap.Outcome = out
	d.mu.Unlock()
	return out
}

// SetTarget updates the requested setpoint. It takes effect at the
// start of the next cycle.
func (d *Device) SetTarget(v float64) {
	d.mu.Lock()
	d.target = v
	d.mu.Unlock()
	log.Printf("target setpoint set to %s", lib.FmtFloat(v))
}

// Close releases the recognizer and sender if they hold external
// resources. Run must have returned first.
func (d *Device) Close() error {
	var err error
	if c, ok := d.rec.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := d.disp.Sender().(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
