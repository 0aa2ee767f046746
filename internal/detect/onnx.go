package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"strconv"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrModelNotFound indicates missing detector weights: a configuration
// error, fatal at startup.
var ErrModelNotFound = errors.New("model weights not found")

// ONNXConfig configures the ONNX detector.
type ONNXConfig struct {
	ModelPath  string
	LabelsPath string // empty selects the embedded COCO-80 vocabulary

	// InputSize is the square model input edge (default 640).
	InputSize int
	// ScoreGate drops candidate boxes below this score before NMS
	// (default 0.25). The pipeline applies its own threshold afterwards.
	ScoreGate float64
	// IoUThreshold controls NMS suppression (default 0.45).
	IoUThreshold float64
}

func (c *ONNXConfig) applyDefaults() {
	if c.InputSize <= 0 {
		c.InputSize = 640
	}
	if c.ScoreGate <= 0 {
		c.ScoreGate = 0.25
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = 0.45
	}
}

// ONNXDetector runs a YOLO-family ONNX model. Construct once per process;
// the session is read-only after construction and safe for concurrent Infer
// calls (each call owns its tensors).
type ONNXDetector struct {
	logger  zerolog.Logger
	session *ort.DynamicAdvancedSession

	labels       []string
	inputSize    int
	anchors      int
	scoreGate    float32
	iouThreshold float64
}

// NewONNXDetector loads model weights and creates an inference session.
// Missing weights surface as ErrModelNotFound.
func NewONNXDetector(logger zerolog.Logger, cfg ONNXConfig) (*ONNXDetector, error) {
	cfg.applyDefaults()

	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	labels := COCOLabels
	if cfg.LabelsPath != "" {
		loaded, err := LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
		labels = loaded
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector session: %w", err)
	}

	// YOLO anchor count for a square input: sum over strides 8/16/32.
	s := cfg.InputSize
	anchors := (s/8)*(s/8) + (s/16)*(s/16) + (s/32)*(s/32)

	logger.Info().
		Str("model", cfg.ModelPath).
		Int("classes", len(labels)).
		Int("input_size", cfg.InputSize).
		Msg("detector model loaded")

	return &ONNXDetector{
		logger:       logger.With().Str("component", "detector").Logger(),
		session:      session,
		labels:       labels,
		inputSize:    cfg.InputSize,
		anchors:      anchors,
		scoreGate:    float32(cfg.ScoreGate),
		iouThreshold: cfg.IoUThreshold,
	}, nil
}

// Infer runs the model on a frame and returns raw detections with boxes in
// frame pixel coordinates, clamped to frame bounds.
func (d *ONNXDetector) Infer(ctx context.Context, frame image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := frame.Bounds()
	frameW, frameH := bounds.Dx(), bounds.Dy()
	if frameW == 0 || frameH == 0 {
		return nil, fmt.Errorf("inference failed: empty frame")
	}

	inputTensor, err := d.preprocess(frame)
	if err != nil {
		return nil, fmt.Errorf("inference preprocessing failed: %w", err)
	}
	defer inputTensor.Destroy()

	outputShape := ort.NewShape(1, int64(4+len(d.labels)), int64(d.anchors))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputTensor.Destroy()

	inputs := []ort.ArbitraryTensor{inputTensor}
	outputs := []ort.ArbitraryTensor{outputTensor}
	if err := d.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	boxes := decodePredictions(outputTensor.GetData(), len(d.labels), d.anchors, d.scoreGate)
	boxes = nonMaxSuppression(boxes, d.iouThreshold)

	sx := float64(frameW) / float64(d.inputSize)
	sy := float64(frameH) / float64(d.inputSize)

	detections := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		det := Detection{
			Class:      d.className(b.class),
			Confidence: b.score,
			BBox:       BBox{b.x1 * sx, b.y1 * sy, b.x2 * sx, b.y2 * sy},
		}
		det.BBox.Clamp(frameW, frameH)
		if det.BBox.Area() == 0 {
			continue
		}
		detections = append(detections, det)
	}

	return detections, nil
}

// Close releases the session and ONNX environment.
func (d *ONNXDetector) Close() error {
	d.logger.Debug().Msg("closing detector session")
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

func (d *ONNXDetector) className(id int) string {
	if id >= 0 && id < len(d.labels) {
		return d.labels[id]
	}
	return strconv.Itoa(id)
}

// preprocess scales the frame to the model input square and packs it as a
// normalized CHW float32 tensor.
func (d *ONNXDetector) preprocess(frame image.Image) (*ort.Tensor[float32], error) {
	side := uint(d.inputSize)
	resized := resize.Resize(side, side, frame, resize.Bilinear)

	n := d.inputSize * d.inputSize
	data := make([]float32, 3*n)

	bounds := resized.Bounds()
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[idx] = float32(r>>8) / 255.0
			data[n+idx] = float32(g>>8) / 255.0
			data[2*n+idx] = float32(b>>8) / 255.0
			idx++
		}
	}

	shape := ort.NewShape(1, 3, int64(d.inputSize), int64(d.inputSize))
	return ort.NewTensor(shape, data)
}

// rawBox is a decoded candidate in model input coordinates.
type rawBox struct {
	x1, y1, x2, y2 float64
	score          float64
	class          int
}

// decodePredictions reads a YOLO output tensor laid out as
// [1, 4+numClasses, anchors]: rows cx, cy, w, h followed by per-class
// scores. Candidates below gate are dropped.
func decodePredictions(data []float32, numClasses, anchors int, gate float32) []rawBox {
	if len(data) < (4+numClasses)*anchors {
		return nil
	}

	var boxes []rawBox
	for a := 0; a < anchors; a++ {
		bestScore := float32(0)
		bestClass := -1
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*anchors+a]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < gate {
			continue
		}

		cx := float64(data[0*anchors+a])
		cy := float64(data[1*anchors+a])
		w := float64(data[2*anchors+a])
		h := float64(data[3*anchors+a])

		boxes = append(boxes, rawBox{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			score: float64(bestScore),
			class: bestClass,
		})
	}
	return boxes
}

// nonMaxSuppression keeps the highest-scoring box among same-class boxes
// overlapping above the IoU threshold.
func nonMaxSuppression(boxes []rawBox, iouThreshold float64) []rawBox {
	if len(boxes) <= 1 {
		return boxes
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].score > boxes[j].score
	})

	kept := make([]rawBox, 0, len(boxes))
	suppressed := make([]bool, len(boxes))
	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])
		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] || boxes[j].class != boxes[i].class {
				continue
			}
			if iou(boxes[i], boxes[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b rawBox) float64 {
	ix1 := maxf(a.x1, b.x1)
	iy1 := maxf(a.y1, b.y1)
	ix2 := minf(a.x2, b.x2)
	iy2 := minf(a.y2, b.y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	areaA := (a.x2 - a.x1) * (a.y2 - a.y1)
	areaB := (b.x2 - b.x1) * (b.y2 - b.y1)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Verify at compile time that *ONNXDetector implements Detector.
var _ Detector = (*ONNXDetector)(nil)
