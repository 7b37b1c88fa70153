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

// package server implements a HTTP API server and status server.

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/aamcrae/HeaterMan/actuator"
	"github.com/aamcrae/HeaterMan/heater"
	"github.com/aamcrae/HeaterMan/lib"
)

type Config struct {
	Port int `yaml:"port"` // HTTP port
}

const defaultPort = 8080

type apiServer struct {
	dev   *heater.Device
	trace bool
}

// Data is the JSON document served from /api.
type Data struct {
	Temperature float64 `json:"temperature"`
	Valid       bool    `json:"valid"`
	LastChange  int64   `json:"last_change"`
	Mode        string  `json:"mode"`
	Target      float64 `json:"target"`
	Heating     bool    `json:"heating"`
	Degraded    bool    `json:"degraded"`
	LastCommand string  `json:"last_command,omitempty"`
	CommandOK   bool    `json:"command_ok"`
	Cycles      int     `json:"cycles"`
	Skipped     int     `json:"skipped"`
	Unreadable  int     `json:"unreadable"`
}

// Serve starts a HTTP server exposing the device state. In dryrun
// mode the handlers are registered but the listener is not started.
func Serve(conf Config, dev *heater.Device, trace, dryrun bool) {
	port := lib.ConfigOrDefault(conf.Port, defaultPort)
	mux := newServeMux(dev, trace)
	if !dryrun {
		go func() {
			log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), mux))
		}()
	}
	log.Printf("Registered HTTP API and status server on port %d\n", port)
}

// newServeMux registers the API handlers.
func newServeMux(dev *heater.Device, trace bool) *http.ServeMux {
	mux := http.NewServeMux()
	s := &apiServer{dev: dev, trace: trace}
	mux.HandleFunc("/api", s.api)
	mux.HandleFunc("/api/", s.api)
	mux.HandleFunc("/target", s.target)
	mux.HandleFunc("/command", s.command)
	mux.HandleFunc("/status", s.status)
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		s.status(w, req)
	})
	return mux
}

// Handler for API requests.
func (s *apiServer) api(w http.ResponseWriter, req *http.Request) {
	if s.trace {
		log.Printf("API: Request: %s", req.URL.String())
	}
	snap := s.dev.Snapshot()
	var c Data
	c.Temperature = snap.Temperature.Value
	c.Valid = snap.Temperature.Valid
	if !snap.Temperature.LastChange.IsZero() {
		c.LastChange = snap.Temperature.LastChange.Unix()
	}
	c.Mode = string(snap.Mode)
	c.Target = snap.Target
	c.Heating = snap.Heating
	c.Degraded = snap.Degraded
	c.LastCommand = string(snap.Outcome.Command)
	c.CommandOK = snap.Outcome.OK
	c.Cycles = snap.Cycles
	c.Skipped = snap.Skipped
	c.Unreadable = snap.Unreadable
	m, err := json.Marshal(c)
	if err != nil {
		log.Printf("api: marshal: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(m)
}

// Handler for setpoint changes (POST /target?value=55).
func (s *apiServer) target(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	v, err := strconv.ParseFloat(req.FormValue("value"), 64)
	if err != nil {
		http.Error(w, "bad value", http.StatusBadRequest)
		return
	}
	if s.trace {
		log.Printf("API: target set to %s", lib.FmtFloat(v))
	}
	s.dev.SetTarget(v)
	w.WriteHeader(http.StatusNoContent)
}

// Commands the host may send directly (POST /command?name=up).
// On and off stay with the control policy; exposing them here would
// fight the hysteresis loop.
var hostCommands = map[actuator.Command]bool{
	actuator.CmdUp:     true,
	actuator.CmdDown:   true,
	actuator.CmdToggle: true,
	actuator.CmdMode:   true,
	actuator.CmdWake:   true,
}

// Handler for host initiated commands, such as setpoint nudges.
func (s *apiServer) command(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	cmd := actuator.Command(req.FormValue("name"))
	if !hostCommands[cmd] {
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}
	if s.trace {
		log.Printf("API: command %s", cmd)
	}
	out := s.dev.Command(req.Context(), cmd)
	if !out.OK {
		http.Error(w, out.Err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// status provides a HTML status page.
func (s *apiServer) status(w http.ResponseWriter, req *http.Request) {
	if s.trace {
		log.Printf("Request: %s", req.URL.String())
	}
	snap := s.dev.Snapshot()
	now := time.Now()
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><head></head><body>")
	fmt.Fprintf(w, "<h1>Heater</h1>")
	fmt.Fprintf(w, "<table border=\"1\"><tr><th>Item</th><th>Value</th></tr>")
	fmt.Fprintf(w, "<tr><td>Temperature</td><td style=\"text-align:right\">%s</td></tr>", lib.FmtFloat(snap.Temperature.Value))
	if snap.Temperature.Valid {
		fmt.Fprintf(w, "<tr><td>Valid</td><td>Yes</td></tr>")
	} else {
		fmt.Fprintf(w, "<tr><td>Valid</td><td>No</td></tr>")
	}
	if ts := snap.Temperature.LastChange; !ts.IsZero() {
		fmt.Fprintf(w, "<tr><td>Last change</td><td>%s (%s ago)</td></tr>", ts.Format(time.UnixDate),
			now.Sub(ts).Truncate(time.Second).String())
	}
	fmt.Fprintf(w, "<tr><td>Mode</td><td>%s</td></tr>", snap.Mode)
	fmt.Fprintf(w, "<tr><td>Target</td><td style=\"text-align:right\">%s</td></tr>", lib.FmtFloat(snap.Target))
	if snap.Heating {
		fmt.Fprintf(w, "<tr><td>Heating</td><td>On</td></tr>")
	} else {
		fmt.Fprintf(w, "<tr><td>Heating</td><td>Off</td></tr>")
	}
	if snap.Degraded {
		fmt.Fprintf(w, "<tr><td>Degraded</td><td>Yes</td></tr>")
	}
	if len(snap.Outcome.Command) > 0 {
		ok := "failed"
		if snap.Outcome.OK {
			ok = "ok"
		}
		fmt.Fprintf(w, "<tr><td>Last command</td><td>%s (%s, %d attempts)</td></tr>",
			snap.Outcome.Command, ok, snap.Outcome.Attempts)
	}
	fmt.Fprintf(w, "</table>")
	fmt.Fprintf(w, "<h1>Counters</h1>")
	fmt.Fprintf(w, "<table border=\"1\"><tr><th>Counter</th><th>Value</th></tr>")
	fmt.Fprintf(w, "<tr><td>Cycles</td><td style=\"text-align:right\">%d</td></tr>", snap.Cycles)
	fmt.Fprintf(w, "<tr><td>Skipped</td><td style=\"text-align:right\">%d</td></tr>", snap.Skipped)
	fmt.Fprintf(w, "<tr><td>Unreadable</td><td style=\"text-align:right\">%d</td></tr>", snap.Unreadable)
	fmt.Fprintf(w, "</table></body>")
}
