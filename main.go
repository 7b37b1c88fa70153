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

// HeaterMan watches a water heater's control panel through a camera,
// reads the displayed temperature, and drives the heater towards a
// target setpoint by sending it remote commands.

package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/aamcrae/HeaterMan/actuator"
	"github.com/aamcrae/HeaterMan/frame"
	"github.com/aamcrae/HeaterMan/hassi"
	"github.com/aamcrae/HeaterMan/heater"
	"github.com/aamcrae/HeaterMan/ocr"
	"github.com/aamcrae/HeaterMan/server"
)

var configFile = flag.String("config", "", "Config file")
var trace = flag.Bool("trace", false, "Trace pipeline decisions")
var logDate = flag.Bool("logtime", false, "Log date and time")
var dryrun = flag.Bool("dryrun", false, "Read the panel but do not send commands")

type mainConfig struct {
	Heater heater.Config  `yaml:"heater"`
	Api    *server.Config `yaml:"api"`
	Hassi  *hassi.Config  `yaml:"hassi"`
}

func main() {
	flag.Parse()
	if !*logDate {
		// Turn off date/time tags on logs
		log.SetFlags(0)
	}
	raw, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatalf("Can't read config %s: %v", *configFile, err)
	}
	var conf mainConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	source, err := frame.NewHTTPSource(conf.Heater.Camera)
	if err != nil {
		log.Fatalf("camera: %v", err)
	}
	rec, err := ocr.New(conf.Heater.OCR)
	if err != nil {
		log.Fatalf("ocr: %v", err)
	}
	var sender actuator.Sender
	if *dryrun {
		sender = dryrunSender{}
	} else {
		sender, err = actuator.NewSender(conf.Heater.Actuator)
		if err != nil {
			log.Fatalf("actuator: %v", err)
		}
	}
	dev, err := heater.New(conf.Heater, source, rec, sender, *trace)
	if err != nil {
		log.Fatalf("Initialisation error: %v", err)
	}
	defer dev.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if conf.Api != nil {
		server.Serve(*conf.Api, dev, *trace, *dryrun)
	}
	if conf.Hassi != nil {
		if err := hassi.Run(ctx, *conf.Hassi, dev, *trace); err != nil {
			log.Fatalf("hassi: %v", err)
		}
	}
	// Run returns once the context is cancelled, after any in-flight
	// cycle has completed.
	dev.Run(ctx)
	log.Printf("Shutting down")
}

// dryrunSender logs the commands that would have been sent.
type dryrunSender struct{}

func (dryrunSender) Send(_ context.Context, payload string) error {
	log.Printf("dryrun: would send %s", payload)
	return nil
}
