package pipeline

import (
	"github.com/framehound/framehound/internal/detect"
	"github.com/framehound/framehound/internal/match"
)

// Params are the per-run invocation parameters. Zero values fall back
// to the process configuration where one is supplied to the runner.
type Params struct {
	// FrameIntervalSeconds is the sampling cadence. Must be > 0.
	FrameIntervalSeconds float64
	// MinConfidence is the inclusive detection threshold in [0,1].
	MinConfidence float64
	// TargetObject is the raw target text from the caller, echoed into
	// the summary. Queries drive the actual matching.
	TargetObject string
	// Queries are the object/color targets to match each frame against.
	Queries []match.Query
	// MaxFrames caps the number of sampled frames. 0 means no cap.
	MaxFrames int
}

// FrameResult records one sampled frame that had at least one detection
// survive the confidence filter. Image is the JPEG-encoded frame and is
// present iff encoding succeeded.
type FrameResult struct {
	Timestamp  float64            `json:"timestamp"`
	FrameIndex int                `json:"frame_index"`
	Objects    []detect.Detection `json:"objects"`
	Image      []byte             `json:"image,omitempty"`
}

// TargetHit records one frame where at least one query matched.
type TargetHit struct {
	Timestamp          float64            `json:"timestamp"`
	TimestampFormatted string             `json:"timestamp_formatted"`
	Image              []byte             `json:"image,omitempty"`
	ImageURL           string             `json:"image_url,omitempty"`
	Objects            []detect.Detection `json:"objects"`
}

// Summary holds the run's counters and the static parameters it ran with.
type Summary struct {
	FPS                  float64 `json:"fps"`
	DurationSeconds      float64 `json:"duration_seconds"`
	TotalFrames          int     `json:"total_frames"`
	ProcessedFrames      int     `json:"processed_frames"`
	FrameIntervalSeconds float64 `json:"frame_interval_seconds"`
	ConfidenceThreshold  float64 `json:"confidence_threshold"`
	TargetObject         string  `json:"target_object,omitempty"`
	DetectionsFound      int     `json:"detections_found"`
	TargetHits           int     `json:"target_hits"`
}

// Result is the complete output of one run over one video.
type Result struct {
	RunID      string        `json:"run_id"`
	Results    []FrameResult `json:"results"`
	TargetHits []TargetHit   `json:"target_hits"`
	Summary    Summary       `json:"summary"`
}
