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

package actuator

import (
	"context"
	"fmt"

	"github.com/aldas/go-modbus-client"
	"github.com/aldas/go-modbus-client/packet"

	"github.com/aamcrae/HeaterMan/lib"
)

const defaultUnit = 1

// RelaySender drives a relay contact through a modbus TCP unit, for
// heaters wired through an external contactor rather than driven by
// IR. The command payload selects the coil state: "1" or "on" closes
// the relay, anything else opens it.
type RelaySender struct {
	addr   string
	unit   uint8
	coil   uint16
	client *modbus.Client
}

// NewRelaySender creates a sender for the configured modbus unit.
func NewRelaySender(conf Config) (*RelaySender, error) {
	if len(conf.Addr) == 0 {
		return nil, fmt.Errorf("actuator: relay addr must be configured")
	}
	return &RelaySender{
		addr:   conf.Addr,
		unit:   uint8(lib.ConfigOrDefault(conf.Unit, defaultUnit)),
		coil:   uint16(conf.Coil),
		client: modbus.NewTCPClient(),
	}, nil
}

// Send writes the coil. A connection is made per command; commands
// are rare (minutes apart at the fastest debounce) so holding a
// connection open buys nothing.
func (r *RelaySender) Send(ctx context.Context, payload string) error {
	state := payload == "1" || payload == "on"
	req, err := packet.NewWriteSingleCoilRequestTCP(r.unit, r.coil, state)
	if err != nil {
		return err
	}
	if err := r.client.Connect(ctx, r.addr); err != nil {
		return fmt.Errorf("connect %s: %v", r.addr, err)
	}
	defer r.client.Close()
	if _, err := r.client.Do(ctx, req); err != nil {
		return fmt.Errorf("write coil %d: %v", r.coil, err)
	}
	return nil
}
