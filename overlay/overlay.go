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

// package overlay renders diagnostic images: the captured frame with
// the configured regions and their recognition results drawn on top.
// Invaluable when tuning region placement for a new installation.

package overlay

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Region is one annotated rectangle.
type Region struct {
	Rect  image.Rectangle
	Label string
	Good  bool // Drawn green when true, red otherwise
}

// Annotator draws regions onto frames.
type Annotator struct {
	face font.Face
}

const fontSize = 14

// NewAnnotator loads the font used for labels.
func NewAnnotator() (*Annotator, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("overlay font: %v", err)
	}
	return &Annotator{face: truetype.NewFace(f, &truetype.Options{Size: fontSize})}, nil
}

// Render draws the regions and a caption onto a copy of the frame.
func (a *Annotator) Render(img image.Image, regions []Region, caption string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(a.face)
	dc.SetLineWidth(1)
	for _, r := range regions {
		if r.Good {
			dc.SetRGB(0, 1, 0)
		} else {
			dc.SetRGB(1, 0, 0)
		}
		dc.DrawRectangle(float64(r.Rect.Min.X), float64(r.Rect.Min.Y),
			float64(r.Rect.Dx()), float64(r.Rect.Dy()))
		dc.Stroke()
		if len(r.Label) > 0 {
			dc.DrawString(r.Label, float64(r.Rect.Min.X), float64(r.Rect.Min.Y)-2)
		}
	}
	if len(caption) > 0 {
		dc.SetRGB(0, 1, 1)
		dc.DrawString(caption, 5, fontSize+2)
	}
	return dc.Image()
}
