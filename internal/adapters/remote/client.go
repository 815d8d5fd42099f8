// Package remote calls the external pose pipeline and converts its answer
// into an AnalysisResult.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/pkg/logger"
)

// Name identifies the remote provider in logs and metrics.
const Name = "remote"

const (
	analyzePath     = "/api/analyze-serve"
	defaultTimeout  = 20 * time.Second
	defaultDuration = 2000.0
	maxErrorBody    = 4 << 10
)

// The pipeline does not return motion traces; results carry this fixed
// placeholder shape so consumers see a well-formed Features value.
var placeholderEnergy = []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.8, 0.7, 0.6}

const (
	placeholderPeak   = 3
	placeholderHit    = 5
	placeholderFollow = 7
)

type request struct {
	VideoData   string `json:"videoData"`
	ContentType string `json:"contentType,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

type response struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Analysis   *report     `json:"analysis"`
	Similarity *similarity `json:"similarity"`
}

type report struct {
	Recommendations []string `json:"recommendations"`
	VideoMetrics    struct {
		Duration float64 `json:"duration"`
	} `json:"videoMetrics"`
	Technique struct {
		Stance        string `json:"stance"`
		FollowThrough string `json:"follow_through"`
		Grip          string `json:"grip"`
	} `json:"technique"`
}

type similarity struct {
	Players       []string           `json:"players"`
	Probabilities map[string]float64 `json:"probabilities"`
	Top1          struct {
		Player string  `json:"player"`
		Score  float64 `json:"score"`
	} `json:"top1"`
}

// Client is an analysis.Provider backed by the external pipeline.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

var _ analysis.Provider = (*Client)(nil)

// NewClient creates a client for the pipeline rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoEndpoint
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  logger.Get().Named("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements analysis.Provider.
func (c *Client) Name() string { return Name }

// Analyze implements analysis.Provider.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) (serve.AnalysisResult, error) {
	body, err := json.Marshal(request{
		VideoData:   base64.StdEncoding.EncodeToString(req.Data),
		ContentType: req.ContentType,
		RequestID:   req.ID,
	})
	if err != nil {
		return serve.AnalysisResult{}, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return serve.AnalysisResult{}, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return serve.AnalysisResult{}, fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return serve.AnalysisResult{}, fmt.Errorf("%w: status %d: %s", ErrRemoteFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return serve.AnalysisResult{}, fmt.Errorf("%w: decode response: %w", ErrRemoteFailed, err)
	}
	if !out.Success || out.Analysis == nil {
		reason := out.Error
		if reason == "" {
			reason = "unknown error"
		}
		return serve.AnalysisResult{}, fmt.Errorf("%w: %s", ErrRemoteFailed, reason)
	}

	c.logger.Debug(ctx, "remote analysis done",
		logger.String("request", req.ID),
		logger.Duration("took", time.Since(start)),
	)
	return convert(out.Analysis, out.Similarity)
}

// convert maps a pipeline report onto the shared result shape. Answers that
// name no players or carry no advice are failures, so the next provider
// gets the clip.
func convert(a *report, s *similarity) (serve.AnalysisResult, error) {
	sims := similarities(s)
	if len(sims) == 0 {
		return serve.AnalysisResult{}, fmt.Errorf("%w: no similarity scores", ErrRemoteFailed)
	}
	advice := make([]string, 0, len(a.Recommendations))
	for _, r := range a.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			advice = append(advice, r)
		}
	}
	if len(advice) == 0 {
		return serve.AnalysisResult{}, fmt.Errorf("%w: no recommendations", ErrRemoteFailed)
	}
	return serve.AnalysisResult{
		Features:     features(a),
		Similarities: sims,
		Advice:       advice,
	}, nil
}

func features(a *report) serve.Features {
	duration := a.VideoMetrics.Duration * 1000
	if duration <= 0 || math.IsNaN(duration) {
		duration = defaultDuration
	}
	centroids := make([]serve.Point, len(placeholderEnergy))
	for i := range centroids {
		centroids[i] = serve.Point{X: 0.5, Y: 0.5}
	}
	return serve.Features{
		DurationMs:            duration,
		MotionEnergy:          append([]float64{}, placeholderEnergy...),
		CentroidPath:          centroids,
		PeakTossIndex:         placeholderPeak,
		ContactIndex:          placeholderHit,
		FollowThroughIndex:    placeholderFollow,
		LowerBodyEngagement:   pick(a.Technique.Stance == "Good", 0.7, 0.5),
		ShoulderRotationProxy: pick(a.Technique.FollowThrough == "Excellent", 0.8, 0.6),
		RacquetDropProxy:      pick(a.Technique.Grip == "Continental", 0.75, 0.5),
	}
}

func similarities(s *similarity) []serve.SimilarityResult {
	if s == nil {
		return []serve.SimilarityResult{}
	}
	players := make([]string, 0, len(s.Probabilities))
	for p := range s.Probabilities {
		players = append(players, p)
	}
	sort.Strings(players)

	out := make([]serve.SimilarityResult, 0, len(players))
	for _, p := range players {
		deltas := make(map[serve.Proxy]float64, len(serve.Proxies))
		for _, proxy := range serve.Proxies {
			deltas[proxy] = 0
		}
		out = append(out, serve.SimilarityResult{
			Player: p,
			Score:  score(s.Probabilities[p]),
			Deltas: deltas,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// score turns a probability into a 0..100 score.
func score(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	return int(math.Round(max(0, min(1, p)) * 100))
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}
