// Command laptrace processes track-day logger files into per-track lap
// timing, best-time ledgers and session exports.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/laptrace/internal/config"
	"github.com/banshee-data/laptrace/internal/monitoring"
	"github.com/banshee-data/laptrace/internal/version"
)

var errUsage = errors.New("usage")

// app carries what every subcommand needs.
type app struct {
	cfg *config.PipelineConfig
	out io.Writer
}

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Fatalf("laptrace: %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("laptrace", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Pipeline config file (.json or .yaml); defaults to "+config.DefaultConfigPath+" when present")
	dataDir := global.String("data-dir", "", "Override the data directory")
	verbose := global.Bool("v", false, "Log calibration and geometry diagnostics to stderr")
	trace := global.Bool("vv", false, "Also log per-sample trace output")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() < 1 {
		printUsage(stderr)
		return errUsage
	}

	writers := monitoring.LogWriters{Ops: stderr}
	if *verbose || *trace {
		writers.Diag = stderr
	}
	if *trace {
		writers.Trace = stderr
	}
	monitoring.SetLogWriters(writers)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		fmt.Fprintf(stderr, format+"\n", v...)
	})

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "version":
		fmt.Fprintf(stdout, "laptrace %s\n", version.LoggerVersion())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dataDir != "" {
		cfg.DataDir = dataDir
	}
	a := &app{cfg: cfg, out: stdout}

	handlers := map[string]func([]string) error{
		"process":  a.process,
		"tracks":   a.tracks,
		"rename":   a.rename,
		"compare":  a.compare,
		"simulate": a.simulate,
		"sessions": a.sessions,
	}
	h, ok := handlers[command]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return errUsage
	}
	return h(rest)
}

// loadConfig reads path, or the default file when path is empty and it
// exists, or falls back to built-in defaults.
func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.DefaultPipelineConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `laptrace - track-day session analysis

Usage: laptrace [global flags] <command> [options]

Commands:
  process    Process logger CSV files (or directories of them)
  tracks     List known tracks and their theoretical best laps
  rename     Rename a track: rename <id> <name>
  compare    Compare laps of one file by distance
  simulate   Write a synthetic Kari Motor Speedway session
  sessions   List catalogued sessions or the fastest laps
  version    Show the build version
  help       Show this help message

Global Flags:
  -config <file>     Pipeline config (.json, .yaml)
  -data-dir <dir>    Data directory (tracks/, sessions/, metadata/)
  -v                 Diagnostic logging
  -vv                Trace logging

Examples:
  laptrace process logs/2025-01-21/
  laptrace process -track 1 run.csv
  laptrace rename 1 "Kari Motor Speedway"
  laptrace compare -ref 2 -target 3 run.csv`)
}
