package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/servecoach/internal/testclips"
)

// Default configuration constants.
const (
	defaultNumClips    = 50
	defaultDuplicates  = 5
	defaultTimeout     = 30 * time.Second
	defaultWait        = 2 * time.Minute
	defaultTestTimeout = 10 * time.Minute
	gifPermission      = 0o644
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numClips   = flag.Int("clips", defaultNumClips, "Number of clips to generate and submit")
		duplicates = flag.Int("duplicates", defaultDuplicates, "Clips submitted twice to exercise dedupe")
		workers    = flag.Int("workers", runtime.NumCPU(), "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait       = flag.Duration("wait", defaultWait, "How long to wait for jobs to finish")
		outputFile = flag.String("output", "", "Report file (default: clip_report_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		gifPath    = flag.String("gif", "", "Write one default clip to this path and exit")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testclips.ShowHelp()
		return
	}

	if *gifPath != "" {
		data, err := testclips.GIF(testclips.DefaultSpec())
		if err == nil {
			err = os.WriteFile(*gifPath, data, gifPermission)
		}
		if err != nil {
			_, _ = os.Stderr.WriteString("Failed to write clip: " + err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	if err := testclips.SetupLogging(*logFile); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testclips.Config{
		BaseURL:    *baseURL,
		NumClips:   *numClips,
		Duplicates: *duplicates,
		Workers:    max(1, *workers),
		Timeout:    *timeout,
		Wait:       *wait,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if err := testclips.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel is called explicitly above
	}
}
