package testclips

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/servecoach/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	reportPermission    = 0600
)

// Run executes the complete clip test: health, generate, submit, wait, verify.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting serve clip test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("clips", config.NumClips),
		logger.Int("duplicates", config.Duplicates),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	clips, err := generateClips(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("clip generation failed: %w", err)
	}

	// Resubmitting the first clips must be answered from the dedupe cache.
	for i := 0; i < config.Duplicates && i < len(clips); i++ {
		clips = append(clips, Clip{Spec: clips[i].Spec, Data: clips[i].Data})
	}

	if err := submitClips(ctx, config, clips, stats); err != nil {
		return fmt.Errorf("clip submission failed: %w", err)
	}

	jobs, err := waitForJobs(ctx, config, clips, stats)
	if err != nil {
		return fmt.Errorf("waiting for jobs failed: %w", err)
	}

	if err := verifyResults(ctx, config, jobs, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if err := saveReport(ctx, config, clips, jobs); err != nil {
		logger.Get().Warn(ctx, "failed to save report", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// waitForJobs polls every distinct job until it is terminal or config.Wait
// elapses.
func waitForJobs(ctx context.Context, config *Config, clips []Clip, stats *Stats) (map[string]JobResult, error) {
	client := newHTTPClient(config.Timeout)
	pending := make(map[string]bool)
	for _, c := range clips {
		if c.JobID != "" {
			pending[c.JobID] = true
		}
	}
	jobs := make(map[string]JobResult, len(pending))

	deadline := time.Now().Add(config.Wait)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for len(pending) > 0 && time.Now().Before(deadline) {
		for id := range pending {
			job, err := fetchJob(ctx, client, config.BaseURL, id)
			if err != nil {
				logger.Get().Warn(ctx, "poll failed", logger.String("job", id), logger.Error(err))
				continue
			}
			if job.Status == "done" || job.Status == "failed" {
				jobs[id] = job
				delete(pending, id)
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	for _, job := range jobs {
		if job.Status == "done" {
			stats.JobsDone++
		} else {
			stats.JobsFailed++
		}
	}
	stats.JobsPending = len(pending)
	return jobs, nil
}

// saveReport writes the generated specs and final job states as JSON.
func saveReport(ctx context.Context, config *Config, clips []Clip, jobs map[string]JobResult) error {
	filename := config.OutputFile
	if filename == "" {
		filename = "clip_report_" + time.Now().Format("20060102_150405") + ".json"
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(struct {
		Clips []Clip               `json:"clips"`
		Jobs  map[string]JobResult `json:"jobs"`
	}{clips, jobs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, clipsPerSecond float64

	if stats.ClipsSubmitted > 0 {
		acceptRate = float64(stats.ClipsAccepted+stats.ClipsDuplicate) / float64(stats.ClipsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		clipsPerSecond = float64(stats.ClipsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("clipsGenerated", stats.ClipsGenerated),
		logger.Int("clipsSubmitted", stats.ClipsSubmitted),
		logger.Int("clipsAccepted", stats.ClipsAccepted),
		logger.Int("clipsDuplicate", stats.ClipsDuplicate),
		logger.Int("clipsRejected", stats.ClipsRejected),
		logger.Int("jobsDone", stats.JobsDone),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Int("jobsPending", stats.JobsPending),
		logger.Int("resultsVerified", stats.ResultsVerified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("clipsPerSecond", clipsPerSecond))
}
