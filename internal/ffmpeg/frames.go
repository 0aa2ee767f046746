package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// FrameStream decodes a video sequentially into raw RGB frames over an
// ffmpeg stdout pipe. Frames are produced strictly in decode order; there is
// no seeking. A stream is single-owner and must be closed on every exit path.
type FrameStream struct {
	info *VideoInfo

	cmd    *exec.Cmd
	stdout io.ReadCloser

	buf []byte // one packed rgb24 frame

	mu         sync.Mutex
	stderrTail []string

	closed bool
	waited bool
}

// OpenFrameStream probes the video and starts an ffmpeg child process that
// writes every decoded frame to its stdout as packed rgb24.
func (e *Executor) OpenFrameStream(ctx context.Context, filePath string) (*FrameStream, error) {
	info, err := e.ProbeVideo(ctx, filePath)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", filePath,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("starting frame stream")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	fs := &FrameStream{
		info:   info,
		cmd:    cmd,
		stdout: stdout,
		buf:    make([]byte, info.Width*info.Height*3),
	}

	// Keep the last few stderr lines for error reporting.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			fs.mu.Lock()
			fs.stderrTail = append(fs.stderrTail, scanner.Text())
			if len(fs.stderrTail) > 8 {
				fs.stderrTail = fs.stderrTail[1:]
			}
			fs.mu.Unlock()
		}
	}()

	return fs, nil
}

// Info returns the probed metadata for the stream's video.
func (s *FrameStream) Info() VideoInfo {
	return *s.info
}

// FPS returns the container-reported frame rate, 0 if unknown.
func (s *FrameStream) FPS() float64 { return s.info.FPS }

// TotalFrames returns the container-reported frame count, 0 if unknown.
func (s *FrameStream) TotalFrames() int { return s.info.TotalFrames }

// DurationSeconds returns the container-reported duration, 0 if unknown.
func (s *FrameStream) DurationSeconds() float64 { return s.info.DurationSeconds }

// ReadFrame blocks until the next frame is fully decoded and returns it as
// an *image.RGBA. It returns io.EOF when the source is exhausted and a
// decode error if the stream dies mid-frame.
func (s *FrameStream) ReadFrame() (image.Image, error) {
	if s.closed {
		return nil, io.EOF
	}

	_, err := io.ReadFull(s.stdout, s.buf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("frame decode failed: %w%s", err, s.stderrSuffix())
	}

	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	src := s.buf
	dst := img.Pix
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}

	return img, nil
}

// Close terminates the decode process and releases the pipe. It is safe to
// call multiple times and after a read error.
func (s *FrameStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	// Closing stdout makes ffmpeg exit on its next write.
	_ = s.stdout.Close()

	if !s.waited {
		s.waited = true
		_ = s.cmd.Wait()
	}

	// ffmpeg exits non-zero when its output pipe is closed early; that is
	// the normal early-termination path, not an error.
	return nil
}

func (s *FrameStream) stderrSuffix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stderrTail) == 0 {
		return ""
	}
	return " (ffmpeg: " + strings.Join(s.stderrTail, "; ") + ")"
}
