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

// package roi defines the regions of interest on the heater panel,
// one per digit, and extracts them from captured frames.
//
// Each region is configured in the main config file as part of the
// 'digits' list:
//   digits:
//     - name: tens
//       ordinal: 0
//       x: 769
//       y: 339
//       w: 17
//       h: 26
//
// The ordinal is the position of the digit in the displayed number,
// counting from the leftmost (most significant) digit.

package roi

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// ErrInvalidRegion flags a region that does not lie within the frame.
// A region outside the frame is a configuration error; clamping the
// rectangle would silently feed a partial digit to the recognizer, so
// the error is surfaced instead.
var ErrInvalidRegion = errors.New("region outside frame bounds")

// ROI is one rectangular region of the frame, expected to
// contain a single digit.
type ROI struct {
	Name    string `yaml:"name"`
	Ordinal int    `yaml:"ordinal"` // Digit position, 0 = most significant
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	W       int    `yaml:"w"`
	H       int    `yaml:"h"`
}

// Rect returns the region as an image rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Extract crops the region from the frame. The returned image is a
// copy, so the frame can be released once all regions are extracted.
func Extract(img image.Image, r ROI) (image.Image, error) {
	if r.W <= 0 || r.H <= 0 {
		return nil, fmt.Errorf("%s: empty rectangle: %w", r.Name, ErrInvalidRegion)
	}
	rect := r.Rect()
	if !rect.In(img.Bounds()) {
		return nil, fmt.Errorf("%s: %v not within frame %v: %w", r.Name, rect, img.Bounds(), ErrInvalidRegion)
	}
	return imaging.Crop(img, rect), nil
}

// Sort orders the regions by ordinal, leftmost digit first.
// The assembler relies on this ordering when concatenating digits.
func Sort(rois []ROI) []ROI {
	s := make([]ROI, len(rois))
	copy(s, rois)
	sort.Slice(s, func(i, j int) bool {
		return s[i].Ordinal < s[j].Ordinal
	})
	return s
}

// Validate checks the region list for config errors that
// can be detected without a frame. Names must be unique; they key
// the per-region state downstream.
func Validate(rois []ROI) error {
	if len(rois) == 0 {
		return fmt.Errorf("no digit regions configured")
	}
	seen := make(map[int]string)
	names := make(map[string]bool)
	for _, r := range rois {
		if len(r.Name) == 0 {
			return fmt.Errorf("region with ordinal %d has no name", r.Ordinal)
		}
		if names[r.Name] {
			return fmt.Errorf("regions share name %s", r.Name)
		}
		names[r.Name] = true
		if prev, ok := seen[r.Ordinal]; ok {
			return fmt.Errorf("regions %s and %s share ordinal %d", prev, r.Name, r.Ordinal)
		}
		seen[r.Ordinal] = r.Name
		if r.W <= 0 || r.H <= 0 {
			return fmt.Errorf("region %s: empty rectangle", r.Name)
		}
	}
	return nil
}
