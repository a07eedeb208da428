// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Command awgserver emulates a Siglent arbitrary waveform generator on the
// network: an rpcbind service on port 111, a VXI-11 Core server on a
// rotating TCP port, and a SCPI command parser that drives a real or
// simulated AWG driver.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"

	"github.com/bstrobel/sds1004x-bode/awg"
	_ "github.com/bstrobel/sds1004x-bode/awg/ad9910spi"
	_ "github.com/bstrobel/sds1004x-bode/awg/dummy"
	_ "github.com/bstrobel/sds1004x-bode/awg/gpiolatch"
	_ "github.com/bstrobel/sds1004x-bode/awg/serial"
	"github.com/bstrobel/sds1004x-bode/awg/telemetry"
	"github.com/bstrobel/sds1004x-bode/portcell"
	"github.com/bstrobel/sds1004x-bode/portmap"
	"github.com/bstrobel/sds1004x-bode/scpi"
	"github.com/bstrobel/sds1004x-bode/vxi11"
)

func main() {
	help := flag.Bool("help", false, "print usage help")
	configFile := flag.String("config", "awgserver.toml", "path to config file")
	flag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Registered AWG drivers:")
		for _, name := range awg.Names() {
			fmt.Fprintf(os.Stderr, " %s", name)
		}
		fmt.Fprint(os.Stderr, "\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := &Config{}
	rawConfig, err := ioutil.ReadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot access config file: %s\n", err)
		os.Exit(1)
	}
	if err := toml.Unmarshal(rawConfig, config); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse config file: %s\n", err)
		os.Exit(1)
	}
	config.withDefaults()

	logger := LogPrintf(func(format string, v ...interface{}) {})
	if config.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		logger = log.Printf
	}
	logger("Configuration: %+v", config)

	driver, err := buildDriver(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure AWG driver: %s\n", err)
		os.Exit(1)
	}
	if err := driver.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to AWG: %s\n", err)
		os.Exit(1)
	}
	if err := driver.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize AWG: %s\n", err)
		os.Exit(1)
	}

	cell := portcell.New(uint16(config.Server.Vxi11PortStart), uint16(config.Server.Vxi11PortEnd))

	pm := &portmap.Server{
		Host: config.Server.Host,
		Port: config.Server.RpcbindPort,
		Cell: cell,
	}
	vx := &vxi11.Server{
		Host: config.Server.Host,
		Cell: cell,
		SCPI: scpi.New(driver),
	}

	done := make(chan struct{})
	errc := make(chan error, 2)
	go func() { errc <- pm.ListenAndServe(done) }()
	go func() { errc <- vx.Serve(done) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	log.Printf("awgserver is ready")
	select {
	case <-sig:
		log.Printf("shutting down")
		close(done)
	case err := <-errc:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %s\n", err)
			os.Exit(1)
		}
	}
}

// buildDriver constructs the AWG driver named in config, optionally
// wrapping it with MQTT telemetry.
func buildDriver(config *Config) (awg.Driver, error) {
	driver, err := awg.New(config.AWG.Driver, config.AWG.asMap())
	if err != nil {
		return nil, err
	}

	if config.Telemetry.Enabled {
		driver, err = telemetry.New(driver, telemetry.Config{
			Host:     config.Telemetry.Host,
			Port:     config.Telemetry.Port,
			User:     config.Telemetry.User,
			Password: config.Telemetry.Password,
		})
		if err != nil {
			return nil, err
		}
	}

	return driver, nil
}
