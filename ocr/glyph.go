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

package ocr

import (
	"errors"
	"fmt"
	"image"

	"github.com/aamcrae/HeaterMan/lib"
	"github.com/aamcrae/HeaterMan/roi"
)

// Mode is the heater operating mode shown by the panel glyphs.
type Mode string

const (
	ModeStandby Mode = "standby"
	ModeLow     Mode = "low"     // Low power heating
	ModeHalf    Mode = "half"    // Fast heat, half tank
	ModeFull    Mode = "full"    // Fast heat, full tank
	ModeSetting Mode = "setting" // Panel is in an interactive menu
)

// GlyphConfig is the glyphs section of the config file - the regions
// of the mode indicator icons. All are optional; with no glyphs
// configured the mode is always reported as standby.
//   glyphs:
//     setting: {x: 775, y: 336, w: 11, h: 7}
//     low:     {x: 733, y: 340, w: 13, h: 5}
//     half:    {x: 733, y: 350, w: 13, h: 5}
//     full:    {x: 733, y: 359, w: 13, h: 5}
//     ratio: 0.20      # Optional lit ratio for an active glyph
//     noise: 20        # Optional peak brightness floor
type GlyphConfig struct {
	Setting *roi.ROI `yaml:"setting"`
	Low     *roi.ROI `yaml:"low"`
	Half    *roi.ROI `yaml:"half"`
	Full    *roi.ROI `yaml:"full"`
	Ratio   float64  `yaml:"ratio"`
	Noise   int      `yaml:"noise"`
}

const defaultGlyphRatio = 0.20
const defaultGlyphNoise = 20

// ModeDetector determines the operating mode from the panel's mode
// glyphs. A glyph is considered active when, after local
// binarization, enough of its region is lit.
type ModeDetector struct {
	setting *roi.ROI
	modes   map[Mode]*roi.ROI
	ratio   float64
	noise   int
	gamma   float64
}

// NewModeDetector creates a detector for the configured glyphs.
func NewModeDetector(conf GlyphConfig, gamma float64) *ModeDetector {
	m := &ModeDetector{
		setting: conf.Setting,
		modes:   make(map[Mode]*roi.ROI),
		ratio:   lib.ConfigOrDefault(conf.Ratio, defaultGlyphRatio),
		noise:   lib.ConfigOrDefault(conf.Noise, defaultGlyphNoise),
		gamma:   lib.ConfigOrDefault(gamma, defaultGamma),
	}
	if m.setting != nil && len(m.setting.Name) == 0 {
		m.setting.Name = string(ModeSetting)
	}
	if conf.Low != nil {
		m.modes[ModeLow] = conf.Low
	}
	if conf.Half != nil {
		m.modes[ModeHalf] = conf.Half
	}
	if conf.Full != nil {
		m.modes[ModeFull] = conf.Full
	}
	for mode, r := range m.modes {
		if len(r.Name) == 0 {
			r.Name = string(mode)
		}
	}
	return m
}

// Detect reads the mode glyphs from the full frame. The setting glyph
// takes precedence; of the mutually exclusive heating mode glyphs the
// brightest active one wins. With nothing lit, the heater is standing by.
// A glyph region outside the frame is a configuration error: it is
// reported once and then dropped from detection, like a misconfigured
// digit region.
func (m *ModeDetector) Detect(img image.Image) (Mode, error) {
	if m.setting != nil {
		lit, err := m.glyphRatio(img, *m.setting)
		if err != nil {
			if errors.Is(err, roi.ErrInvalidRegion) {
				m.setting = nil
			}
			return ModeStandby, err
		}
		if lit > m.ratio {
			return ModeSetting, nil
		}
	}
	best := ModeStandby
	bestRatio := m.ratio
	for mode, r := range m.modes {
		lit, err := m.glyphRatio(img, *r)
		if err != nil {
			if errors.Is(err, roi.ErrInvalidRegion) {
				delete(m.modes, mode)
			}
			return ModeStandby, err
		}
		if lit > bestRatio {
			best = mode
			bestRatio = lit
		}
	}
	return best, nil
}

// glyphRatio returns the lit fraction of one glyph region.
func (m *ModeDetector) glyphRatio(img image.Image, r roi.ROI) (float64, error) {
	crop, err := roi.Extract(img, r)
	if err != nil {
		return 0, fmt.Errorf("glyph %s: %w", r.Name, err)
	}
	g := prepare(crop, m.gamma)
	if peak(g) < m.noise {
		return 0, nil
	}
	bin := binarize(g, otsu(g))
	return litRatio(bin, bin.Bounds()), nil
}
