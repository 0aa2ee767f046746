package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/framehound/framehound/pkg/util"
)

// ProbeVideo extracts metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", filePath, err)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{
		FilePath: filePath,
	}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.DurationSeconds = dur
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Width = stream.Width
		info.Height = stream.Height
		info.VideoCodec = stream.CodecName

		// Calculate FPS from r_frame_rate (e.g., "30/1")
		if stream.RFrameRate != "" {
			info.FPS = util.ParseFrameRate(stream.RFrameRate)
		}
		if n, err := strconv.Atoi(stream.NbFrames); err == nil {
			info.TotalFrames = n
		}
		break
	}

	// Some containers omit nb_frames; estimate from duration when possible.
	if info.TotalFrames == 0 && info.FPS > 0 && info.DurationSeconds > 0 {
		info.TotalFrames = int(math.Round(info.DurationSeconds * info.FPS))
	}

	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("no video stream found in %s", filePath)
	}

	e.logger.Debug().
		Str("file", filePath).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("total_frames", info.TotalFrames).
		Msg("video probed")

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
}
