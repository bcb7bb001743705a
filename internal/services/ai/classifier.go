package ai

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"sync"

	"checkin/internal/captcha"
	"checkin/internal/config"
	"checkin/internal/logger"

	"gocv.io/x/gocv"
)

// ClassifierService labels single sprites with a small image classifier.
type ClassifierService struct {
	net    gocv.Net
	labels []string
	size   image.Point
	logger *logger.Logger
	mu     sync.Mutex
}

// NewClassifierService loads the classifier network and its label file.
// Without a label file the class index is used as the label.
func NewClassifierService(config *config.Config, logger *logger.Logger) (*ClassifierService, error) {
	if _, err := os.Stat(config.ClassifierModel); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ClassifierModel)
	}

	net := gocv.ReadNet(config.ClassifierModel, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", config.ClassifierModel)
	}

	var labels []string
	if config.ClassifierLabels != "" {
		var err error
		labels, err = readLabels(config.ClassifierLabels)
		if err != nil {
			net.Close()
			return nil, err
		}
	}

	logger.Info("Classifier initialized from %s with %d labels", config.ClassifierModel, len(labels))
	return &ClassifierService{
		net:    net,
		labels: labels,
		size:   image.Pt(config.ClassifierInputW, config.ClassifierInputH),
		logger: logger,
	}, nil
}

// Classify returns the most likely label for img.
func (s *ClassifierService) Classify(ctx context.Context, img captcha.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mat, err := decode(img.Data, gocv.IMReadGrayScale)
	if err != nil {
		return "", err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, s.size, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	scores := output.Reshape(1, 1)
	defer scores.Close()

	_, confidence, _, maxLoc := gocv.MinMaxLoc(scores)
	label := labelFor(maxLoc.X, s.labels)
	s.logger.Debug("Sprite classified as %s (%.2f)", label, confidence)
	return label, nil
}

// Close releases the network.
func (s *ClassifierService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}

func labelFor(index int, labels []string) string {
	if index >= 0 && index < len(labels) {
		return labels[index]
	}
	return strconv.Itoa(index)
}

// readLabels reads one label per line, skipping blank lines.
func readLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return labels, nil
}
