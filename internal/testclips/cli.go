// Package testclips generates synthetic serve clips and drives a running
// service with them: submit, wait for the jobs, verify the results.
package testclips

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/servecoach/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		logFile = "test_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	if err := logger.Init(logger.WithWriter(multiWriter)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the clip test tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Serve Clip Test Tool
====================

Generates synthetic serve clips, submits them to a running service, waits for
the analyses and checks every result.

Usage:
  go run ./cmd/test-clips [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -clips int
        Number of clips to generate and submit (default 50)
  -duplicates int
        Clips submitted twice to exercise dedupe (default 5)
  -workers int
        Number of concurrent submitters (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -wait duration
        How long to wait for jobs to finish (default 2m)
  -output string
        Report file (default: clip_report_TIMESTAMP.json)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -gif string
        Write one default clip to this path and exit
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/test-clips -clips 200 -workers 8
  go run ./cmd/test-clips -gif serve.gif
`)
}
