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
	"github.com/aamcrae/HeaterMan/actuator"
	"github.com/aamcrae/HeaterMan/control"
	"github.com/aamcrae/HeaterMan/frame"
	"github.com/aamcrae/HeaterMan/ocr"
	"github.com/aamcrae/HeaterMan/reading"
	"github.com/aamcrae/HeaterMan/roi"
)

// Config is the heater section of the config file, combining the
// per-module sections. One Config describes one physical heater;
// nothing is shared between device instances.
//
//   heater:
//     poll: 1000            # Cycle interval in milliseconds
//     keepalive: 40         # Optional panel wake interval (seconds)
//     debug: /tmp/heaterman # Optional dir for annotated bad frames
//     camera: ...
//     digits: ...
//     glyphs: ...
//     ocr: ...
//     reading: ...
//     stabilize: ...
//     control: ...
//     actuator: ...
type Config struct {
	Poll      int                     `yaml:"poll"`
	KeepAlive int                     `yaml:"keepalive"`
	Debug     string                  `yaml:"debug"`
	Camera    frame.Config            `yaml:"camera"`
	Digits    []roi.ROI               `yaml:"digits"`
	Glyphs    ocr.GlyphConfig         `yaml:"glyphs"`
	OCR       ocr.Config              `yaml:"ocr"`
	Reading   reading.Config          `yaml:"reading"`
	Stabilize reading.StabilizeConfig `yaml:"stabilize"`
	Control   control.Config          `yaml:"control"`
	Actuator  actuator.Config         `yaml:"actuator"`
}

const defaultPoll = 1000
