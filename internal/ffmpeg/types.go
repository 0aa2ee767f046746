package ffmpeg

// VideoInfo contains metadata about a video file. FPS and TotalFrames come
// straight from the container and may be 0 when the source does not report
// them; callers decide how to substitute.
type VideoInfo struct {
	FilePath        string
	DurationSeconds float64
	Width           int
	Height          int
	FPS             float64
	TotalFrames     int
	VideoCodec      string
}
