// Package pipeline drives one video through sampling, detection,
// confidence filtering, color extraction, and target matching,
// producing a single result object per run.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/framehound/framehound/internal/color"
	"github.com/framehound/framehound/internal/detect"
	"github.com/framehound/framehound/internal/match"
	"github.com/framehound/framehound/internal/sampler"
	"github.com/framehound/framehound/internal/storage"
	"github.com/framehound/framehound/pkg/util"
)

// FrameSource is a decode handle for one video. It is owned by a single
// run and closed when the run ends, on every path.
type FrameSource interface {
	sampler.Source
	DurationSeconds() float64
}

// Opener opens a video file for sequential decoding.
type Opener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, path string) (FrameSource, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (FrameSource, error) {
	return f(ctx, path)
}

const jpegQuality = 90

// Pipeline runs videos through the detection chain. The detector is
// shared across runs and must be safe for concurrent inference; all
// other state is per-run.
type Pipeline struct {
	logger    zerolog.Logger
	detector  detect.Detector
	opener    Opener
	extractor *color.Extractor
	store     storage.ImageStore
}

// New assembles a pipeline. store may be nil, in which case snapshots
// are only embedded in the result payload, not uploaded.
func New(logger zerolog.Logger, detector detect.Detector, opener Opener, store storage.ImageStore) *Pipeline {
	return &Pipeline{
		logger:    logger.With().Str("component", "pipeline").Logger(),
		detector:  detector,
		opener:    opener,
		extractor: color.NewExtractor(logger),
		store:     store,
	}
}

// Run processes one video and returns its complete result. Parameter
// problems are rejected before any decoding; a decode or inference
// failure mid-run aborts the whole run and discards everything
// accumulated so far. Cancellation is honored between frames.
func (p *Pipeline) Run(ctx context.Context, videoPath string, params Params) (*Result, error) {
	if params.FrameIntervalSeconds <= 0 {
		return nil, inputErrorf("frame_interval_seconds must be greater than 0, got %v", params.FrameIntervalSeconds)
	}
	if params.MinConfidence < 0 || params.MinConfidence > 1 {
		return nil, inputErrorf("min_confidence must be within [0,1], got %v", params.MinConfidence)
	}
	if !util.FileExists(videoPath) {
		return nil, notFoundErrorf("video file not found at %s", videoPath)
	}

	runID := uuid.NewString()
	log := p.logger.With().Str("run_id", runID).Logger()
	log.Info().
		Str("video", videoPath).
		Float64("frame_interval", params.FrameIntervalSeconds).
		Float64("min_confidence", params.MinConfidence).
		Str("target", targetLabel(params)).
		Msg("processing video")

	src, err := p.opener.Open(ctx, videoPath)
	if err != nil {
		return nil, processingError(fmt.Errorf("open video %s: %w", videoPath, err))
	}
	samp, err := sampler.New(src, params.FrameIntervalSeconds, params.MaxFrames)
	if err != nil {
		src.Close()
		return nil, inputErrorf("%s", err)
	}
	defer samp.Close()

	colorize := match.AnyColored(params.Queries)

	var (
		results   []FrameResult
		hits      []TargetHit
		processed int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, processingError(err)
		}

		frame, err := samp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, processingError(fmt.Errorf("decode frame: %w", err))
		}
		processed++

		detections, err := p.detector.Infer(ctx, frame.Image)
		if err != nil {
			return nil, processingError(fmt.Errorf("inference at frame %d: %w", frame.Index, err))
		}

		kept := detect.FilterByConfidence(detections, params.MinConfidence)
		if len(kept) == 0 {
			continue
		}

		if colorize {
			p.attachColors(frame.Image, kept)
		}

		snapshot := p.encodeSnapshot(log, frame.Image)
		results = append(results, FrameResult{
			Timestamp:  frame.Timestamp,
			FrameIndex: frame.Index,
			Objects:    kept,
			Image:      snapshot,
		})

		matched := match.Filter(kept, params.Queries)
		if len(matched) == 0 {
			continue
		}
		hit := TargetHit{
			Timestamp:          frame.Timestamp,
			TimestampFormatted: util.FormatTimestamp(frame.Timestamp),
			Image:              snapshot,
			Objects:            matched,
		}
		if p.store != nil && snapshot != nil {
			key := fmt.Sprintf("%s/frame-%06d.jpg", runID, frame.Index)
			url, err := p.store.SaveSnapshot(ctx, key, snapshot, "image/jpeg")
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("snapshot upload failed")
			} else {
				hit.ImageURL = url
			}
		}
		hits = append(hits, hit)
	}

	duration := src.DurationSeconds()
	if duration == 0 && src.FPS() > 0 {
		duration = float64(src.TotalFrames()) / src.FPS()
	}

	res := &Result{
		RunID:      runID,
		Results:    results,
		TargetHits: hits,
		Summary: Summary{
			FPS:                  samp.EffectiveFPS(),
			DurationSeconds:      duration,
			TotalFrames:          src.TotalFrames(),
			ProcessedFrames:      processed,
			FrameIntervalSeconds: params.FrameIntervalSeconds,
			ConfidenceThreshold:  params.MinConfidence,
			TargetObject:         targetLabel(params),
			DetectionsFound:      len(results),
			TargetHits:           len(hits),
		},
	}

	log.Info().
		Int("processed_frames", processed).
		Int("detections_found", len(results)).
		Int("target_hits", len(hits)).
		Msg("detection complete")

	return res, nil
}

// attachColors annotates each detection with its dominant region color.
// Extraction failures leave the detection uncolored and never abort the
// frame.
func (p *Pipeline) attachColors(frame image.Image, detections []detect.Detection) {
	for i := range detections {
		sample, ok := p.extractor.Extract(frame, [4]float64(detections[i].BBox))
		if !ok {
			continue
		}
		rgb := sample.RGB
		detections[i].Color = sample.Name
		detections[i].ColorRGB = &rgb
	}
}

// encodeSnapshot JPEG-encodes the frame. Encoding failure is logged
// and the frame result simply carries no image.
func (p *Pipeline) encodeSnapshot(log zerolog.Logger, frame image.Image) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Warn().Err(err).Msg("snapshot encode failed")
		return nil
	}
	return buf.Bytes()
}

// targetLabel renders the query set as the single target string echoed
// in logs and the summary.
func targetLabel(params Params) string {
	if params.TargetObject != "" {
		return params.TargetObject
	}
	return strings.Join(match.Objects(params.Queries), ", ")
}
