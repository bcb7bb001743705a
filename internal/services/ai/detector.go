package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"checkin/internal/captcha"
	"checkin/internal/config"
	"checkin/internal/logger"

	"gocv.io/x/gocv"
)

const (
	DetectionThreshold = 0.5 // Default threshold for object detection confidence
	OverlapThreshold   = 0.5 // Boxes overlapping more than this (IoU) are merged
)

// detection is one raw network proposal before overlap suppression.
type detection struct {
	box        captcha.BoundingBox
	confidence float32
}

// DetectorService proposes candidate object boxes in puzzle backgrounds.
type DetectorService struct {
	net        gocv.Net
	modelPath  string
	configPath string
	inputSize  int
	threshold  float32
	overlap    float64
	logger     *logger.Logger
	mu         sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// NewDetectorService loads the detection network described by config.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	service := &DetectorService{
		modelPath:  config.DetectorModel,
		configPath: config.DetectorConfig,
		inputSize:  config.DetectorInputSize,
		threshold:  float32(config.DetectorThreshold),
		overlap:    config.OverlapSuppression,
		logger:     logger,
	}
	if service.threshold <= 0 {
		service.threshold = DetectionThreshold
	}
	if service.overlap <= 0 {
		service.overlap = OverlapThreshold
	}
	if service.inputSize <= 0 {
		service.inputSize = 416
	}

	if err := service.initializeNet(); err != nil {
		return nil, err
	}
	return service, nil
}

// initializeNet loads the network from the model file and optional config file.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if s.configPath != "" {
		if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.configPath)
		}
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network %s", s.modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Detection network initialized from %s", s.modelPath)
	return nil
}

// Detect returns the candidate boxes found in img, strongest first.
func (s *DetectorService) Detect(ctx context.Context, img captcha.Image) ([]captcha.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := decode(img.Data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	size := image.Pt(s.inputSize, s.inputSize)
	blob := gocv.BlobFromImage(mat, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	if output.Total()%7 != 0 {
		return nil, fmt.Errorf("unexpected detector output of %d values", output.Total())
	}

	// Each row: [batch, class, confidence, x1, y1, x2, y2], coordinates normalized.
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	width, height := mat.Cols(), mat.Rows()
	var found []detection
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence < s.threshold {
			continue
		}
		box := clampBox(captcha.BoundingBox{
			X1: int(rows.GetFloatAt(i, 3) * float32(width)),
			Y1: int(rows.GetFloatAt(i, 4) * float32(height)),
			X2: int(rows.GetFloatAt(i, 5) * float32(width)),
			Y2: int(rows.GetFloatAt(i, 6) * float32(height)),
		}, width, height)
		if !box.Valid() {
			continue
		}
		found = append(found, detection{box: box, confidence: confidence})
	}

	boxes := suppressOverlaps(found, s.overlap)
	s.logger.Debug("Detected %d raw proposals, %d after overlap suppression", len(found), len(boxes))
	return boxes, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}

func clampBox(b captcha.BoundingBox, width, height int) captcha.BoundingBox {
	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	return captcha.BoundingBox{
		X1: clamp(b.X1, width),
		Y1: clamp(b.Y1, height),
		X2: clamp(b.X2, width),
		Y2: clamp(b.Y2, height),
	}
}

// suppressOverlaps keeps the most confident box of every group of boxes
// overlapping by more than threshold (intersection over union).
func suppressOverlaps(found []detection, threshold float64) []captcha.BoundingBox {
	sorted := make([]detection, len(found))
	copy(sorted, found)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].confidence > sorted[j].confidence
	})

	var kept []captcha.BoundingBox
	for _, d := range sorted {
		overlapping := false
		for _, k := range kept {
			if iou(d.box, k) > threshold {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, d.box)
		}
	}
	return kept
}

func iou(a, b captcha.BoundingBox) float64 {
	ra := image.Rect(a.X1, a.Y1, a.X2, a.Y2)
	rb := image.Rect(b.X1, b.Y1, b.X2, b.Y2)
	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}
	area := func(r image.Rectangle) float64 { return float64(r.Dx() * r.Dy()) }
	union := area(ra) + area(rb) - area(inter)
	return area(inter) / union
}
