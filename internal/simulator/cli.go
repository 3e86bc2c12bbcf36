package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/rumble/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "sim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Rumble Party Simulator
======================

Plays a fully scripted rumble party against a running service: creates a
party, files every guest's picks, confirms both divisions' matches fact
by fact and verifies the resulting standings.

Usage:
  go run cmd/rumble-sim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -participants int
        Number of predicting guests (default 100)
  -top int
        Standings page size to fetch and verify (default 50)
  -workers int
        Concurrent workers for prediction submission (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for simulator output (default: sim_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/rumble-sim/main.go

  # A bigger party against a different address
  go run cmd/rumble-sim/main.go -participants 500 -url http://localhost:8080

  # Verbose output with a custom log file
  go run cmd/rumble-sim/main.go -verbose -log party_night.log
`)
}
