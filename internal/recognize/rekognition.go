package recognize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"parkvision-backend/internal/cluster"
	"parkvision-backend/internal/parking"
)

// boxScale turns Rekognition's relative coordinates into a pixel-like range.
// Only relative geometry matters for ordering.
const boxScale = 1000

// RekognitionAPI is the subset of the Rekognition client used here.
type RekognitionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
	DetectCustomLabels(ctx context.Context, params *rekognition.DetectCustomLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error)
}

// RekognitionText reads plate crops with DetectText.
type RekognitionText struct {
	client        RekognitionAPI
	minConfidence float32
}

// NewRekognitionText reads plates with DetectText, dropping detections below minConfidence.
func NewRekognitionText(client RekognitionAPI, minConfidence float32) *RekognitionText {
	return &RekognitionText{client: client, minConfidence: minConfidence}
}

// ReadText returns one candidate per detected line.
func (r *RekognitionText) ReadText(ctx context.Context, image []byte) ([]parking.PlateCandidate, error) {
	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectText: %w", err)
	}

	var candidates []parking.PlateCandidate
	for _, det := range out.TextDetections {
		if det.Type != types.TextTypesLine || det.DetectedText == nil {
			continue
		}
		confidence := aws.ToFloat32(det.Confidence)
		if confidence < r.minConfidence {
			continue
		}
		text := strings.TrimSpace(*det.DetectedText)
		if text == "" {
			continue
		}
		candidates = append(candidates, parking.PlateCandidate{Text: text, Confidence: float64(confidence) / 100})
	}
	log.Printf("Rekognition read %d plate line(s)", len(candidates))
	return candidates, nil
}

// RekognitionSpots detects spots with a Custom Labels model whose labels
// map onto occupied or free.
type RekognitionSpots struct {
	client            RekognitionAPI
	projectVersionARN string
	minConfidence     float32
	classes           map[string]cluster.Class
}

// NewRekognitionSpots detects spots with the custom labels model at projectVersionARN.
func NewRekognitionSpots(client RekognitionAPI, projectVersionARN string, minConfidence float32, occupiedLabels, freeLabels []string) *RekognitionSpots {
	classes := make(map[string]cluster.Class, len(occupiedLabels)+len(freeLabels))
	for _, l := range occupiedLabels {
		classes[strings.ToLower(l)] = cluster.Occupied
	}
	for _, l := range freeLabels {
		classes[strings.ToLower(l)] = cluster.Free
	}
	return &RekognitionSpots{
		client:            client,
		projectVersionARN: projectVersionARN,
		minConfidence:     minConfidence,
		classes:           classes,
	}
}

// Detect implements parking.SpotDetector.
func (r *RekognitionSpots) Detect(ctx context.Context, image []byte) ([]cluster.Box, error) {
	if r.projectVersionARN == "" {
		return nil, errors.New("rekognition project version ARN is not configured")
	}

	input := &rekognition.DetectCustomLabelsInput{
		Image:             &types.Image{Bytes: image},
		ProjectVersionArn: aws.String(r.projectVersionARN),
	}
	if r.minConfidence > 0 {
		input.MinConfidence = aws.Float32(r.minConfidence)
	}

	out, err := r.client.DetectCustomLabels(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectCustomLabels: %w", err)
	}

	boxes := make([]cluster.Box, 0, len(out.CustomLabels))
	for _, label := range out.CustomLabels {
		class, ok := r.classes[strings.ToLower(aws.ToString(label.Name))]
		if !ok {
			continue
		}
		if label.Geometry == nil || label.Geometry.BoundingBox == nil {
			continue
		}
		bb := label.Geometry.BoundingBox
		left := float64(aws.ToFloat32(bb.Left)) * boxScale
		top := float64(aws.ToFloat32(bb.Top)) * boxScale
		boxes = append(boxes, cluster.Box{
			X1:         left,
			Y1:         top,
			X2:         left + float64(aws.ToFloat32(bb.Width))*boxScale,
			Y2:         top + float64(aws.ToFloat32(bb.Height))*boxScale,
			Class:      class,
			Confidence: float64(aws.ToFloat32(label.Confidence)) / 100,
		})
	}
	return boxes, nil
}
