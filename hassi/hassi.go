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

// package hassi implements a writer that uploads the heater state
// to the Home Assistant API.
//
// The package is configured as a section in the main config file:
//  hassi:
//    apikey: <apikey from Home Assistant>
//    url: <API endpoint e.g http://hass:8123/api/states/sensor.water_heater>
//    rate: <update rate in minutes>

package hassi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aamcrae/HeaterMan/heater"
	"github.com/aamcrae/HeaterMan/lib"
)

type Config struct {
	URL  string `yaml:"url"`
	Key  string `yaml:"apikey"`
	Rate int    `yaml:"rate"` // Update rate in minutes
}

const defaultRate = 1

type hassi struct {
	dev    *heater.Device
	url    string
	key    string
	trace  bool
	client *http.Client
}

// Run periodically uploads the heater state until the context is
// cancelled.
func Run(ctx context.Context, conf Config, dev *heater.Device, trace bool) error {
	if len(conf.URL) == 0 || len(conf.Key) == 0 {
		return fmt.Errorf("hassi: url and apikey must be configured")
	}
	h := &hassi{
		dev:    dev,
		url:    conf.URL,
		key:    fmt.Sprintf("Bearer %s", conf.Key),
		trace:  trace,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	intv := time.Minute * time.Duration(lib.ConfigOrDefault(conf.Rate, defaultRate))
	log.Printf("Registered Home Assistant uploader (%s interval)\n", intv)
	go h.run(ctx, intv)
	return nil
}

func (h *hassi) run(ctx context.Context, intv time.Duration) {
	tick := time.NewTicker(intv)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			h.update(ctx)
		}
	}
}

// update uploads the current heater state to Home Assistant.
func (h *hassi) update(ctx context.Context) {
	type blk struct {
		State string                 `json:"state"`
		Attr  map[string]interface{} `json:"attributes"`
	}
	snap := h.dev.Snapshot()
	var b blk
	if snap.Temperature.Valid {
		b.State = lib.FmtFloat(snap.Temperature.Value)
	} else {
		b.State = "unavailable"
	}
	b.Attr = map[string]interface{}{
		"mode":       string(snap.Mode),
		"target":     snap.Target,
		"heating":    snap.Heating,
		"degraded":   snap.Degraded,
		"unreadable": snap.Unreadable,
	}
	buf := new(bytes.Buffer)
	json.NewEncoder(buf).Encode(&b)
	req, err := http.NewRequestWithContext(ctx, "POST", h.url, buf)
	if err != nil {
		log.Printf("NewRequest (%s) failed: %v", h.url, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", h.key)
	res, err := h.client.Do(req)
	if err != nil {
		log.Printf("Req (%s) failed: %v", h.url, err)
		return
	}
	defer res.Body.Close()
	if res.StatusCode != 200 && res.StatusCode != 201 {
		log.Printf("hassi: req %s, resp %s", h.url, res.Status)
	}
	if h.trace {
		log.Printf("hassi: Sent req %s, resp %s", h.url, res.Status)
	}
}
