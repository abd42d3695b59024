package vision

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/kiosk/internal/observability"
)

// Face is one detected face: its location in the frame and the embedding
// extracted from it. No pixel data leaves this package once the embedding
// exists.
type Face struct {
	BBox       [4]float32 // x1, y1, x2, y2 in frame pixels
	Confidence float32
	Embedding  []float32
}

// Encoder is the black-box detect-and-encode capability: given a frame,
// produce zero or more (region, embedding) pairs. The capture loop depends
// only on this interface so the matching and presence logic is independent
// of the underlying algorithm.
type Encoder interface {
	DetectAndEncode(frame image.Image) ([]Face, error)
	Close()
}

// ONNXEncoder implements Encoder with a RetinaFace detector and an ArcFace
// embedder running on ONNX Runtime.
type ONNXEncoder struct {
	detector *detector
	embedder *embedder
}

// NewONNXEncoder loads both models from modelsDir.
func NewONNXEncoder(modelsDir string, detectionThreshold float32) (*ONNXEncoder, error) {
	detPath := filepath.Join(modelsDir, "det_10g.onnx")
	embPath := filepath.Join(modelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := newDetector(detPath, detectionThreshold)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := newEmbedder(embPath)
	if err != nil {
		det.close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("encoder ready")
	return &ONNXEncoder{detector: det, embedder: emb}, nil
}

// DetectAndEncode runs detection on the frame, crops each face and extracts
// its embedding. Faces whose crop or embedding fails are skipped with a
// warning rather than failing the whole frame.
func (e *ONNXEncoder) DetectAndEncode(frame image.Image) ([]Face, error) {
	bounds := frame.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	detInput := preprocessForDetection(frame, e.detector.inputW, e.detector.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := e.detector.detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	if len(detections) == 0 {
		return nil, nil
	}

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(frame, det.bbox)
		if crop == nil {
			continue
		}

		start = time.Now()
		embInput := preprocessForEmbedding(crop, e.embedder.inputW, e.embedder.inputH)
		embedding, err := e.embedder.extract(embInput)
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Warn("embed failed, skipping face", "error", err)
			continue
		}

		faces = append(faces, Face{
			BBox:       det.bbox,
			Confidence: det.confidence,
			Embedding:  embedding,
		})
	}

	return faces, nil
}

// Close releases both ONNX sessions.
func (e *ONNXEncoder) Close() {
	if e.detector != nil {
		e.detector.close()
	}
	if e.embedder != nil {
		e.embedder.close()
	}
}
