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
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aamcrae/HeaterMan/lib"
)

const defaultClientID = "heaterman"
const connectTimeout = 10 * time.Second

// MQTTSender publishes command payloads to a broker topic, where an
// IR blaster bridge picks them up and transmits them to the heater.
type MQTTSender struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSender connects to the configured broker.
func NewMQTTSender(conf Config) (*MQTTSender, error) {
	if len(conf.Broker) == 0 || len(conf.Topic) == 0 {
		return nil, fmt.Errorf("actuator: mqtt broker and topic must be configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(lib.ConfigOrDefault(conf.ClientID, defaultClientID))
	client := mqtt.NewClient(opts)
	t := client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect %s: timeout", conf.Broker)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %v", conf.Broker, err)
	}
	return &MQTTSender{client: client, topic: conf.Topic}, nil
}

// Send publishes one payload at QoS 1 and waits for broker
// acknowledgement, bounded by the context deadline.
func (m *MQTTSender) Send(ctx context.Context, payload string) error {
	tok := m.client.Publish(m.topic, 1, false, payload)
	wait := connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if !tok.WaitTimeout(wait) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	return tok.Error()
}

// Close disconnects from the broker.
func (m *MQTTSender) Close() error {
	m.client.Disconnect(250)
	return nil
}
