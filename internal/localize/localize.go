// Package localize finds and crops the license plate in a gate camera frame.
package localize

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// DefaultEpsilon is the polygon approximation tolerance in pixels.
const DefaultEpsilon = 10.0

// ErrDecode is returned when the input bytes are not a decodable image.
var ErrDecode = errors.New("could not decode image")

// Region is a located plate: its four corners and their bounding box,
// clipped to the source image.
type Region struct {
	Corners []image.Point
	Rect    image.Rectangle
}

// Localizer crops plates out of encoded images.
type Localizer struct {
	Epsilon float64
}

// New returns a Localizer using eps, or DefaultEpsilon when eps is not positive.
func New(eps float64) *Localizer {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Localizer{Epsilon: eps}
}

// Prepare decodes image and returns its grayscale version and an edge map.
// The caller owns both Mats.
func Prepare(img []byte) (gray, edges gocv.Mat, err error) {
	src, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer src.Close()
	if src.Empty() {
		return gocv.Mat{}, gocv.Mat{}, ErrDecode
	}

	gray = gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(gray, &smooth, 11, 17, 17)

	edges = gocv.NewMat()
	gocv.Canny(smooth, &edges, 30, 200)
	return gray, edges, nil
}

// Locate searches edges for the largest contour that approximates to a
// quadrilateral. bounds is the size of the source image.
func (l *Localizer) Locate(edges gocv.Mat, bounds image.Rectangle) (Region, bool) {
	contours := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	type candidate struct {
		idx  int
		area float64
	}
	candidates := make([]candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		candidates = append(candidates, candidate{idx: i, area: gocv.ContourArea(contours.At(i))})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})

	for _, c := range candidates {
		approx := gocv.ApproxPolyDP(contours.At(c.idx), l.Epsilon, true)
		if approx.Size() != 4 {
			approx.Close()
			continue
		}
		corners := approx.ToPoints()
		rect := gocv.BoundingRect(approx).Intersect(bounds)
		approx.Close()

		// first quadrilateral wins, even when it clips to nothing
		if rect.Empty() {
			return Region{}, false
		}
		return Region{Corners: corners, Rect: rect}, true
	}
	return Region{}, false
}

// Crop locates the plate in img and returns the grayscale crop encoded as PNG.
// A missing plate is reported with found=false and a nil error.
func (l *Localizer) Crop(img []byte) (crop []byte, found bool, err error) {
	gray, edges, err := Prepare(img)
	if err != nil {
		return nil, false, err
	}
	defer gray.Close()
	defer edges.Close()

	region, ok := l.Locate(edges, image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if !ok {
		return nil, false, nil
	}

	plate := gray.Region(region.Rect)
	defer plate.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, plate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode plate crop: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), true, nil
}
