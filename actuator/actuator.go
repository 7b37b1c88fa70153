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

// package actuator sends commands to the heater, either as opaque IR
// payloads published over MQTT, or by driving a relay coil over
// modbus TCP.
//
// The package is configured under the 'actuator' section:
//   actuator:
//     type: <mqtt or relay>            # Optional, default mqtt
//     broker: <mqtt broker url>        # mqtt
//     clientid: <mqtt client id>       # Optional
//     topic: <mqtt command topic>      # mqtt
//     addr: <host:port>                # relay
//     unit: <modbus unit id>           # Optional, default 1
//     coil: <modbus coil address>      # Optional, default 0
//     retries: <attempts after the first> # Optional, default 2
//     backoff: <retry backoff in ms>   # Optional, default 500
//     timeout: <per attempt, seconds>  # Optional, default 5
//     spacing: <min ms between sends>  # Optional, default 600
//     commands:
//       on: <payload>
//       off: <payload>
//       # Optional extras: up, down, toggle, mode, wake

package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aamcrae/HeaterMan/lib"
)

// ErrDispatchFailed flags a command that could not be delivered after
// all retries. Losing control authority over a heating appliance is a
// safety relevant condition, so this is always surfaced, never dropped.
var ErrDispatchFailed = errors.New("actuator dispatch failed")

// Command names an action from the configured command map.
type Command string

const (
	CmdOn     Command = "on"
	CmdOff    Command = "off"
	CmdUp     Command = "up"     // One setpoint step up
	CmdDown   Command = "down"   // One setpoint step down
	CmdToggle Command = "toggle" // Power button
	CmdMode   Command = "mode"   // Cycle heating mode
	CmdWake   Command = "wake"   // Wake a blanked panel
)

// Outcome reports what happened to one dispatched command, echoing
// the command back for observability.
type Outcome struct {
	Command  Command
	Attempts int
	OK       bool
	Err      error
	When     time.Time
}

// Sender delivers a single opaque payload to the heater.
type Sender interface {
	Send(ctx context.Context, payload string) error
}

// Config is the actuator section of the config file.
type Config struct {
	Type     string             `yaml:"type"`
	Broker   string             `yaml:"broker"`
	ClientID string             `yaml:"clientid"`
	Topic    string             `yaml:"topic"`
	Addr     string             `yaml:"addr"`
	Unit     int                `yaml:"unit"`
	Coil     int                `yaml:"coil"`
	Retries  int                `yaml:"retries"`
	Backoff  int                `yaml:"backoff"`
	Timeout  int                `yaml:"timeout"`
	Spacing  int                `yaml:"spacing"`
	Commands map[string]string  `yaml:"commands"`
}

const defaultRetries = 2
const defaultBackoff = 500
const defaultTimeout = 5
const defaultSpacing = 600

// NewSender creates the configured transport.
func NewSender(conf Config) (Sender, error) {
	switch lib.ConfigOrDefault(conf.Type, "mqtt") {
	case "mqtt":
		return NewMQTTSender(conf)
	case "relay":
		return NewRelaySender(conf)
	}
	return nil, fmt.Errorf("%s: unknown actuator type", conf.Type)
}

// Dispatcher maps commands to payloads and delivers them through a
// sender, retrying transient failures. Sends from the control loop
// and from host commands are serialized, keeping the inter-send
// spacing honest.
type Dispatcher struct {
	sender   Sender
	commands map[string]string
	retries  int
	backoff  time.Duration
	timeout  time.Duration
	spacing  time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// NewDispatcher creates a dispatcher using the given sender.
func NewDispatcher(conf Config, sender Sender) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		commands: conf.Commands,
		retries:  lib.ConfigOrDefault(conf.Retries, defaultRetries),
		backoff:  time.Duration(lib.ConfigOrDefault(conf.Backoff, defaultBackoff)) * time.Millisecond,
		timeout:  time.Duration(lib.ConfigOrDefault(conf.Timeout, defaultTimeout)) * time.Second,
		spacing:  time.Duration(lib.ConfigOrDefault(conf.Spacing, defaultSpacing)) * time.Millisecond,
	}
}

// Sender returns the underlying sender, so the owner can close it.
func (d *Dispatcher) Sender() Sender {
	return d.sender
}

// Mapped returns true if a payload is configured for the command.
func (d *Dispatcher) Mapped(cmd Command) bool {
	_, ok := d.commands[string(cmd)]
	return ok
}

// Dispatch sends one command. Failed attempts are retried with a
// linear backoff up to the configured limit; the outcome reports the
// attempts made and the final error, if any. Consecutive sends are
// spaced out so rapid command sequences do not overrun the heater's
// IR receiver.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := Outcome{Command: cmd, When: time.Now()}
	payload, ok := d.commands[string(cmd)]
	if !ok {
		out.Err = fmt.Errorf("%s: no payload configured: %w", cmd, ErrDispatchFailed)
		return out
	}
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			if !d.pause(ctx, d.backoff*time.Duration(attempt)) {
				break
			}
		}
		if wait := d.spacing - time.Since(d.lastSend); wait > 0 {
			if !d.pause(ctx, wait) {
				break
			}
		}
		out.Attempts++
		actx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.sender.Send(actx, payload)
		cancel()
		d.lastSend = time.Now()
		if err == nil {
			out.OK = true
			return out
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	out.Err = fmt.Errorf("%s after %d attempts: %v: %w", cmd, out.Attempts, lastErr, ErrDispatchFailed)
	return out
}

// pause sleeps unless the context is cancelled first.
func (d *Dispatcher) pause(ctx context.Context, t time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(t):
		return true
	}
}
