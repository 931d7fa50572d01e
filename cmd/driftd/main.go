// driftd - behavioral baseline and drift-detection analytics daemon
//
//	driftd run [-config path] [-input path] [-output path]  Run the pipeline over a snapshot stream
//	driftd check-config -config path                         Validate a configuration file
//	driftd defaults                                          Print the default configuration as TOML
//
// The run command reads newline-delimited JSON snapshot records from the
// input (stdin by default), drives the analytics pipeline, and writes
// validated report records to the output (stdout by default). Raw sensor
// capture and feature extraction happen upstream; driftd consumes their
// already-extracted snapshots.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "check-config":
		cmdCheckConfig(os.Args[2:])
	case "defaults":
		cmdDefaults()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`driftd - behavioral baseline & drift detection

USAGE:
    driftd <command> [options]

COMMANDS:
    run             Run the analytics pipeline over a snapshot stream
    check-config    Validate a configuration file
    defaults        Print the default configuration as TOML
    help            Show this help

RUN OPTIONS:
    -config path    Configuration file (.toml or .yaml)
    -input path     Snapshot stream, NDJSON ("-" for stdin)
    -output path    Report stream, NDJSON ("-" for stdout)`)
}
