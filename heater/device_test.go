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

package heater

import (
	"context"
	"fmt"
	"image"
	"time"

	"testing"

	"github.com/aamcrae/HeaterMan/actuator"
	"github.com/aamcrae/HeaterMan/control"
	"github.com/aamcrae/HeaterMan/frame"
	"github.com/aamcrae/HeaterMan/ocr"
	"github.com/aamcrae/HeaterMan/roi"
)

// fakeSource serves a fixed frame, or an error when down.
type fakeSource struct {
	when time.Time
	down bool
}

func (s *fakeSource) Fetch(_ context.Context) (frame.Frame, error) {
	if s.down {
		return frame.Frame{}, fmt.Errorf("camera offline")
	}
	return frame.Frame{Img: image.NewGray(image.Rect(0, 0, 100, 50)), When: s.when}, nil
}

// fakeRec returns a scripted pair of digits per frame, cycling
// through the script. An empty script reads as no digits.
type fakeRec struct {
	script []string
	frames int
	calls  int
}

func (r *fakeRec) Recognize(_ image.Image) (ocr.DigitReading, error) {
	if len(r.script) == 0 {
		return ocr.DigitReading{}, nil
	}
	s := r.script[r.frames%len(r.script)]
	d := ocr.DigitReading{Char: s[r.calls], Confidence: 1.0}
	r.calls++
	if r.calls == len(s) {
		r.calls = 0
		r.frames++
	}
	return d, nil
}

type recorder struct {
	payloads []string
	fail     bool
}

func (r *recorder) Send(_ context.Context, payload string) error {
	if r.fail {
		return fmt.Errorf("transport down")
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

func testDevice(t *testing.T, script []string, keepAlive int) (*Device, *fakeSource, *recorder) {
	t.Helper()
	conf := Config{
		KeepAlive: keepAlive,
		Digits: []roi.ROI{
			{Name: "tens", Ordinal: 0, X: 10, Y: 10, W: 10, H: 20},
			{Name: "units", Ordinal: 1, X: 30, Y: 10, W: 10, H: 20},
		},
		Control: control.Config{Target: 50, DeadBand: 2, Interval: 1},
		Actuator: actuator.Config{
			Retries: 0,
			Backoff: 1,
			Spacing: 1,
			Commands: map[string]string{
				"on":   "ON",
				"off":  "OFF",
				"up":   "UP",
				"wake": "WAKE",
			},
		},
	}
	src := &fakeSource{}
	rec := &recorder{}
	dev, err := New(conf, src, &fakeRec{script: script}, rec, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dev, src, rec
}

func TestDeviceHeats(t *testing.T) {
	dev, src, rec := testDevice(t, []string{"45"}, 0)
	now := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		src.when = now
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second)
	}
	snap := dev.Snapshot()
	if snap.Temperature.Value != 45 || !snap.Temperature.Valid {
		t.Errorf("temperature: got %v/%v want 45/valid", snap.Temperature.Value, snap.Temperature.Valid)
	}
	if !snap.Heating {
		t.Errorf("heating: got off want on")
	}
	if snap.Cycles != 5 {
		t.Errorf("cycles: got %d want %d", snap.Cycles, 5)
	}
	// The turn-on command is sent exactly once, not once per cycle.
	if len(rec.payloads) != 1 || rec.payloads[0] != "ON" {
		t.Errorf("payloads: got %v want [ON]", rec.payloads)
	}
}

func TestDeviceStopsAtTarget(t *testing.T) {
	dev, src, rec := testDevice(t, []string{"45"}, 0)
	now := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		src.when = now
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second)
	}
	// The tank heats past the band.
	dev.rec.(*fakeRec).script = []string{"53"}
	for i := 0; i < 3; i++ {
		src.when = now
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second)
	}
	snap := dev.Snapshot()
	if snap.Heating {
		t.Errorf("heating: got on want off")
	}
	if len(rec.payloads) != 2 || rec.payloads[1] != "OFF" {
		t.Errorf("payloads: got %v want [ON OFF]", rec.payloads)
	}
}

func TestDeviceCameraLoss(t *testing.T) {
	dev, src, rec := testDevice(t, []string{"45"}, 0)
	now := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		src.when = now
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second)
	}
	sent := len(rec.payloads)
	// Camera goes dark past the staleness timeout.
	src.down = true
	now = now.Add(time.Second * 60)
	for i := 0; i < 3; i++ {
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second)
	}
	snap := dev.Snapshot()
	if snap.Temperature.Valid {
		t.Errorf("stale reading: got valid want invalid")
	}
	if snap.Temperature.Value != 45 {
		t.Errorf("stale value: got %v want %v", snap.Temperature.Value, 45.0)
	}
	if !snap.Degraded {
		t.Errorf("degraded: got false want true")
	}
	if snap.Unreadable != 3 {
		t.Errorf("unreadable: got %d want %d", snap.Unreadable, 3)
	}
	// Loss of sight never commands the heater.
	if len(rec.payloads) != sent {
		t.Errorf("payloads during camera loss: got %v", rec.payloads[sent:])
	}
}

func TestDeviceKeepAlive(t *testing.T) {
	dev, src, rec := testDevice(t, nil, 40)
	now := time.Unix(1000, 0)
	// Nothing readable; the panel may have blanked itself.
	for i := 0; i < 3; i++ {
		src.when = now
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second * 30)
	}
	wakes := 0
	for _, p := range rec.payloads {
		if p == "WAKE" {
			wakes++
		}
	}
	if wakes != 2 {
		t.Errorf("wakes: got %d want %d", wakes, 2)
	}
}

func TestDeviceDropsPendingTick(t *testing.T) {
	dev, _, _ := testDevice(t, nil, 0)
	tick := make(chan time.Time, 1)
	// A tick fired while the previous cycle overran.
	tick <- time.Now()
	dev.dropPending(tick, time.Now().Add(-3*dev.poll-time.Millisecond*10))
	select {
	case <-tick:
		t.Errorf("pending tick not dropped")
	default:
	}
	if got := dev.Snapshot().Skipped; got != 3 {
		t.Errorf("skipped: got %d want %d", got, 3)
	}
	// A cycle inside the poll interval drops nothing.
	tick <- time.Now()
	dev.dropPending(tick, time.Now())
	select {
	case <-tick:
	default:
		t.Errorf("on-time tick dropped")
	}
}

func TestDeviceHostCommand(t *testing.T) {
	dev, _, rec := testDevice(t, nil, 0)
	out := dev.Command(context.Background(), actuator.CmdUp)
	if !out.OK {
		t.Fatalf("host command: %v", out.Err)
	}
	if len(rec.payloads) != 1 || rec.payloads[0] != "UP" {
		t.Errorf("payloads: got %v want [UP]", rec.payloads)
	}
	if got := dev.Snapshot().Outcome.Command; got != actuator.CmdUp {
		t.Errorf("outcome echo: got %v want %v", got, actuator.CmdUp)
	}
	out = dev.Command(context.Background(), actuator.CmdToggle)
	if out.OK {
		t.Errorf("unconfigured command should fail")
	}
}

func TestDeviceSetTarget(t *testing.T) {
	dev, src, rec := testDevice(t, []string{"53"}, 0)
	now := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		src.when = now
		dev.Cycle(context.Background(), now)
		now = now.Add(time.Second)
	}
	if len(rec.payloads) != 0 {
		t.Fatalf("in band, off: got %v want no commands", rec.payloads)
	}
	// Raising the target makes the current temperature too cold.
	dev.SetTarget(60)
	src.when = now
	dev.Cycle(context.Background(), now)
	if len(rec.payloads) != 1 || rec.payloads[0] != "ON" {
		t.Errorf("payloads: got %v want [ON]", rec.payloads)
	}
	if dev.Snapshot().Target != 60 {
		t.Errorf("target: got %v want %v", dev.Snapshot().Target, 60.0)
	}
}
