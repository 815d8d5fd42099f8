// Command serve-analyze runs the local engine on one clip and prints the
// analysis as indented JSON. Profiles and weights come from the same
// configuration as the service (SERVECOACH_CONFIG and SERVECOACH_* vars).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/config"
	"github.com/okian/servecoach/pkg/logger"
)

const defaultTimeout = 2 * time.Minute

type options struct {
	in      string
	rate    float64
	top     int
	timeout time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "Clip to analyze (GIF)")
	flag.Float64Var(&opts.rate, "rate", 0, "Sampling rate in frames per second (default from config)")
	flag.IntVar(&opts.top, "top", 0, "Print only the N closest players (0 prints all)")
	flag.DurationVar(&opts.timeout, "timeout", defaultTimeout, "Give up after this long")
	verbose := flag.Bool("verbose", false, "Log pipeline progress to stderr")
	flag.Parse()

	if opts.in == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Logs go to stderr so stdout stays valid JSON.
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if !*verbose {
		_ = logger.SetLevelString("warn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		_, _ = os.Stderr.WriteString("serve-analyze: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel is called explicitly above
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if opts.rate > 0 {
		cfg.SampleRate = opts.rate
	}
	table, err := cfg.ProfileTable()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.in)
	if err != nil {
		return fmt.Errorf("read clip: %w", err)
	}

	engine := analysis.NewEngine(
		analysis.WithProfileTable(table),
		analysis.WithSampler(video.NewSampler(
			video.WithSampleRate(cfg.SampleRate),
			video.WithMinSamples(cfg.MinSamples),
			video.WithReadyTimeout(cfg.ReadyTimeout()),
		)),
		analysis.WithSourceOptions(
			video.WithMaxPixels(cfg.MaxPixels),
			video.WithMaxFrames(cfg.MaxFrames),
			video.WithMaxDecodedPixels(cfg.MaxDecodedPixels),
		),
	)
	res, err := engine.Analyze(ctx, analysis.Request{
		ID:          filepath.Base(opts.in),
		ContentType: mime.TypeByExtension(filepath.Ext(opts.in)),
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", opts.in, err)
	}
	if opts.top > 0 && opts.top < len(res.Similarities) {
		res.Similarities = res.Similarities[:opts.top]
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
