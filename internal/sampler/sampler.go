package sampler

import (
	"fmt"
	"image"
	"io"
	"math"
)

// AssumedFPS is substituted when a source does not report a usable frame
// rate. Cadence math and timestamps both use it in that case.
const AssumedFPS = 30.0

// Source is a sequential-read video decode handle. ReadFrame returns io.EOF
// when the source is exhausted. FPS and TotalFrames are container-reported
// and may be 0 when unknown.
type Source interface {
	ReadFrame() (image.Image, error)
	FPS() float64
	TotalFrames() int
	Close() error
}

// Frame is a forwarded sample: the decoded image plus its position in the
// source.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
}

// Sampler forwards frames from a source at a fixed time cadence. Every frame
// is still decoded sequentially; frames that fall between sample points are
// discarded after decode. The sequence is lazy, finite, and non-restartable.
type Sampler struct {
	src       Source
	step      int
	fps       float64
	maxFrames int

	index     int
	forwarded int
	done      bool
}

// New validates the interval and computes the frame step:
// step = ceil(interval * fps), floored at 1. maxFrames caps the number of
// forwarded frames; 0 means no cap.
func New(src Source, intervalSeconds float64, maxFrames int) (*Sampler, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("frame interval must be greater than 0, got %v", intervalSeconds)
	}

	fps := src.FPS()
	if fps <= 0 {
		fps = AssumedFPS
	}

	step := int(math.Ceil(intervalSeconds * fps))
	if step < 1 {
		step = 1
	}

	return &Sampler{
		src:       src,
		step:      step,
		fps:       fps,
		maxFrames: maxFrames,
	}, nil
}

// Step returns the spacing, in decoded frames, between consecutive samples.
func (s *Sampler) Step() int { return s.step }

// EffectiveFPS returns the frame rate used for cadence and timestamps,
// after the assumed-fps substitution.
func (s *Sampler) EffectiveFPS() float64 { return s.fps }

// Next returns the next forwarded frame. It returns io.EOF when the source
// is exhausted or the forwarded-frame cap is reached, and a decode error
// otherwise. After any error the sampler is done.
func (s *Sampler) Next() (Frame, error) {
	if s.done {
		return Frame{}, io.EOF
	}
	if s.maxFrames > 0 && s.forwarded >= s.maxFrames {
		s.done = true
		return Frame{}, io.EOF
	}

	for {
		img, err := s.src.ReadFrame()
		if err == io.EOF {
			s.done = true
			return Frame{}, io.EOF
		}
		if err != nil {
			s.done = true
			return Frame{}, err
		}

		index := s.index
		s.index++

		if index%s.step != 0 {
			continue
		}

		s.forwarded++
		return Frame{
			Index:     index,
			Timestamp: float64(index) / s.fps,
			Image:     img,
		}, nil
	}
}

// Close releases the underlying source. Safe to call at any point,
// including after an error.
func (s *Sampler) Close() error {
	s.done = true
	return s.src.Close()
}
