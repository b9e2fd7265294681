// Package main is the entry point for the tracecore packet-analysis agent.
package main

import (
	"fmt"
	"os"

	"github.com/packetloom/tracecore/cmd"
	_ "github.com/packetloom/tracecore/plugins/kafkareport" // registers the kafkareport plugin
	_ "github.com/packetloom/tracecore/plugins/trafficstats" // registers the trafficstats plugin
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
