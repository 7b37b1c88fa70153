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

// package frame retrieves panel images from an image source.
//
// The package is configured as part of the main config file
// under the 'camera' section:
//   camera:
//     source: <url to retrieve image>
//     timeout: <fetch timeout in seconds>      # Optional, default 10
//     rotate: <degrees to rotate clockwise>    # Optional

package frame

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	// Image formats supported from the source.
	_ "image/jpeg"
	_ "image/png"

	"github.com/aamcrae/lcd"
	"github.com/aamcrae/HeaterMan/lib"
)

const defaultTimeout = 10

// Frame is one captured image of the heater panel.
// It is only held for the duration of a single recognition cycle.
type Frame struct {
	Img  image.Image
	When time.Time
}

// Source provides panel frames. Fetching may block on network I/O,
// so it is bounded by the context.
type Source interface {
	Fetch(ctx context.Context) (Frame, error)
}

// Config is the camera section of the config file.
type Config struct {
	Source  string  `yaml:"source"`
	Timeout int     `yaml:"timeout"`
	Rotate  float64 `yaml:"rotate"`
}

// HTTPSource fetches frames from a URL, such as a still-image
// endpoint of an IP camera.
type HTTPSource struct {
	url    string
	rotate float64
	client *http.Client
}

// NewHTTPSource creates a frame source for the configured URL.
func NewHTTPSource(conf Config) (*HTTPSource, error) {
	if len(conf.Source) == 0 {
		return nil, fmt.Errorf("camera: no source URL configured")
	}
	timeout := lib.ConfigOrDefault(conf.Timeout, defaultTimeout)
	return &HTTPSource{
		url:    conf.Source,
		rotate: conf.Rotate,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// Fetch retrieves and decodes one frame. If a rotation is configured
// (e.g the camera cannot be mounted square to the panel), the image is
// rotated before use.
func (s *HTTPSource) Fetch(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return Frame{}, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("fetch %s: %v", s.url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("fetch %s: %s", s.url, res.Status)
	}
	img, _, err := image.Decode(res.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("decode %s: %v", s.url, err)
	}
	if s.rotate != 0 {
		img = lcd.RotateImage(img, s.rotate)
	}
	return Frame{Img: img, When: time.Now()}, nil
}

// Save writes the frame to a file for later analysis.
func Save(name string, f Frame) error {
	return lcd.SaveImage(name, f.Img)
}
