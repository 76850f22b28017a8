package main

import (
	"log/slog"
	"os"

	"github.com/evanofslack/dns-relay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		slog.Error("dns-relay failed", "error", err)
		os.Exit(1)
	}
}
