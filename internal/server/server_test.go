package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	stdcolor "image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framehound/framehound/internal/config"
	"github.com/framehound/framehound/internal/detect"
	"github.com/framehound/framehound/internal/intent"
	"github.com/framehound/framehound/internal/pipeline"
)

type stubSource struct {
	frames int
	pos    int
}

func (s *stubSource) ReadFrame() (image.Image, error) {
	if s.pos >= s.frames {
		return nil, io.EOF
	}
	s.pos++
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, stdcolor.RGBA{20, 20, 220, 255})
		}
	}
	return img, nil
}

func (s *stubSource) FPS() float64             { return 30 }
func (s *stubSource) TotalFrames() int         { return s.frames }
func (s *stubSource) DurationSeconds() float64 { return float64(s.frames) / 30 }
func (s *stubSource) Close() error             { return nil }

type stubDetector struct {
	detections []detect.Detection
}

func (d *stubDetector) Infer(_ context.Context, _ image.Image) ([]detect.Detection, error) {
	return d.detections, nil
}

func (d *stubDetector) Close() error { return nil }

func newTestServer(t *testing.T, detections []detect.Detection) *Server {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	opener := pipeline.OpenerFunc(func(_ context.Context, _ string) (pipeline.FrameSource, error) {
		return &stubSource{frames: 30}, nil
	})
	p := pipeline.New(zerolog.Nop(), &stubDetector{detections: detections}, opener, nil)
	parser := intent.NewParser(zerolog.Nop(), nil)
	return New(zerolog.Nop(), cfg, p, parser)
}

func videoUpload(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="clip.mp4"`)
	hdr.Set("Content-Type", "video/mp4")
	fw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("not a real container, opener is stubbed"))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthRejectsPost(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProcessVideo(t *testing.T) {
	srv := newTestServer(t, []detect.Detection{
		{Class: "car", Confidence: 0.9, BBox: detect.BBox{2, 2, 30, 30}},
	})

	body, contentType := videoUpload(t, map[string]string{
		"target_object":          "car",
		"frame_interval_seconds": "1",
		"min_confidence":         "0.6",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/process-video", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Summary struct {
			ProcessedFrames int    `json:"processed_frames"`
			TargetObject    string `json:"target_object"`
			TargetHits      int    `json:"target_hits"`
		} `json:"summary"`
		TargetHits []struct {
			TimestampFormatted string `json:"timestamp_formatted"`
		} `json:"target_hits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "car", resp.Summary.TargetObject)
	assert.Equal(t, 1, resp.Summary.ProcessedFrames, "30 frames at 1s interval yields one sample")
	require.Equal(t, 1, resp.Summary.TargetHits)
	assert.Equal(t, "00:00", resp.TargetHits[0].TimestampFormatted)
}

func TestProcessVideoColorTarget(t *testing.T) {
	// The stub frames are solid blue, so "blue car" matches and "red car"
	// does not.
	detections := []detect.Detection{
		{Class: "car", Confidence: 0.9, BBox: detect.BBox{2, 2, 30, 30}},
	}

	for _, tc := range []struct {
		target   string
		wantHits int
	}{
		{"blue car", 1},
		{"red car", 0},
	} {
		t.Run(tc.target, func(t *testing.T) {
			srv := newTestServer(t, detections)
			body, contentType := videoUpload(t, map[string]string{"target_object": tc.target})
			req := httptest.NewRequest(http.MethodPost, "/api/process-video", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp struct {
				Summary struct {
					TargetHits int `json:"target_hits"`
				} `json:"summary"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantHits, resp.Summary.TargetHits)
		})
	}
}

func TestProcessVideoRejectsBadInterval(t *testing.T) {
	srv := newTestServer(t, nil)

	body, contentType := videoUpload(t, map[string]string{"frame_interval_seconds": "-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/process-video", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessVideoRejectsNonVideoUpload(t *testing.T) {
	srv := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
	hdr.Set("Content-Type", "text/plain")
	fw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process-video", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessVideoRequiresFile(t *testing.T) {
	srv := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("target_object", "car"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process-video", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntentEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/intent", bytes.NewBufferString(`{"query":"find a red car"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res intent.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "car", res.Pairs[0].Object)
	assert.Equal(t, "red", res.Pairs[0].Color)
	assert.Equal(t, []string{"car"}, res.Targets)
	assert.Equal(t, []string{"red"}, res.Colors)
}

func TestIntentRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/intent", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Default config allows all origins.
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/process-video", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
