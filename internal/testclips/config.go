package testclips

import "time"

// Config holds configuration for the clip load test.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumClips   int           // Number of clips to generate
	Duplicates int           // Clips resubmitted to exercise dedupe
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Wait       time.Duration // Upper bound on waiting for jobs to finish
	OutputFile string        // Output file for the run report
	Verbose    bool          // Enable verbose logging
}

// Clip is a generated upload.
type Clip struct {
	Spec  Spec   `json:"spec"`
	Data  []byte `json:"-"`
	JobID string `json:"jobId,omitempty"`
}

// Ack is the response to POST /analyses.
type Ack struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Similarity is one entry of a job result.
type Similarity struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
}

// Landmarks are the frame indexes reported for a clip.
type Landmarks struct {
	PeakTossIndex      int `json:"peakTossIndex"`
	ContactIndex       int `json:"contactIndex"`
	FollowThroughIndex int `json:"followThroughIndex"`
}

// Report is the analysis result of a finished job.
type Report struct {
	Features     Landmarks    `json:"features"`
	Similarities []Similarity `json:"similarities"`
	Advice       []string     `json:"advice"`
}

// JobResult is the response to GET /analyses/{id}.
type JobResult struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Provider string  `json:"provider"`
	Error    string  `json:"error"`
	Result   *Report `json:"result"`
}

// Stats holds test statistics.
type Stats struct {
	ClipsGenerated  int
	ClipsSubmitted  int
	ClipsAccepted   int
	ClipsDuplicate  int
	ClipsRejected   int
	JobsDone        int
	JobsFailed      int
	JobsPending     int
	ResultsVerified int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
