// Package recognize adapts external vision services to the plate and spot
// interfaces of the parking orchestrator.
package recognize

import (
	"context"
	"fmt"
	"log"

	"parkvision-backend/internal/parking"
)

// TextReader reads text lines from a cropped plate image.
type TextReader interface {
	ReadText(ctx context.Context, image []byte) ([]parking.PlateCandidate, error)
}

// Cropper isolates the plate region of a gate frame.
type Cropper interface {
	Crop(image []byte) (crop []byte, found bool, err error)
}

// LocalizingRecognizer crops the plate out of the frame before reading it.
type LocalizingRecognizer struct {
	cropper Cropper
	reader  TextReader
}

// NewLocalizingRecognizer reads plates from the regions cropper finds.
func NewLocalizingRecognizer(cropper Cropper, reader TextReader) *LocalizingRecognizer {
	return &LocalizingRecognizer{cropper: cropper, reader: reader}
}

// Recognize implements parking.PlateRecognizer. A frame without a plate
// shaped region yields no candidates.
func (r *LocalizingRecognizer) Recognize(ctx context.Context, image []byte) ([]parking.PlateCandidate, error) {
	crop, found, err := r.cropper.Crop(image)
	if err != nil {
		return nil, fmt.Errorf("failed to localize plate: %w", err)
	}
	if !found {
		log.Println("No plate region found in frame")
		return nil, nil
	}
	return r.reader.ReadText(ctx, crop)
}
