package ffmpeg

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Executor handles all ffmpeg operations: metadata probing and sequential
// frame decoding. It is cheap to construct and safe for concurrent use; each
// frame stream it opens owns its own child process.
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger) (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}
