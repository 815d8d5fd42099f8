package testclips

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// PostClip uploads raw clip bytes.
func (c *HTTPClient) PostClip(ctx context.Context, url string, data []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/gif")
	return c.client.Do(req)
}

// readJSON decodes and closes the response body.
func readJSON(resp *http.Response, v interface{}) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// submitClips uploads clips concurrently and records the job id of each.
func submitClips(ctx context.Context, config *Config, clips []Clip, stats *Stats) error {
	log.Printf("📤 Submitting %d clips with %d workers...", len(clips), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/analyses"

	var accepted, duplicate, rejected, submitted int64

	indexes := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					return
				}
				id, outcome := submitClip(ctx, client, url, clips[i].Data)
				clips[i].JobID = id
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&rejected, 1)
				}
				if config.Verbose {
					log.Printf("📊 clip %s -> %s (%s)", clips[i].Spec.Name, id, outcome)
				}
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range clips {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()
	wg.Wait()

	stats.ClipsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.ClipsAccepted = int(atomic.LoadInt64(&accepted))
	stats.ClipsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.ClipsRejected = int(atomic.LoadInt64(&rejected))

	log.Printf(`✅ Clip submission completed:
   Accepted: %d
   Duplicate: %d
   Rejected: %d
`, stats.ClipsAccepted, stats.ClipsDuplicate, stats.ClipsRejected)
	return nil
}

// submitClip uploads one clip and classifies the answer.
func submitClip(ctx context.Context, client *HTTPClient, url string, data []byte) (string, string) {
	resp, err := client.PostClip(ctx, url, data)
	if err != nil {
		return "", outcomeRejected
	}
	var ack Ack
	decodeErr := readJSON(resp, &ack)
	switch {
	case resp.StatusCode == http.StatusAccepted && decodeErr == nil:
		return ack.ID, outcomeAccepted
	case resp.StatusCode == http.StatusOK && decodeErr == nil && ack.Duplicate:
		return ack.ID, outcomeDuplicate
	default:
		return "", outcomeRejected
	}
}

// fetchJob reads one job.
func fetchJob(ctx context.Context, client *HTTPClient, baseURL, id string) (JobResult, error) {
	resp, err := client.Get(ctx, baseURL+"/analyses/"+id)
	if err != nil {
		return JobResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return JobResult{}, fmt.Errorf("job %s: status %d", id, resp.StatusCode)
	}
	var job JobResult
	if err := readJSON(resp, &job); err != nil {
		return JobResult{}, fmt.Errorf("job %s: %w", id, err)
	}
	return job, nil
}
