// Package cluster orders spot detections into numbered rows.
package cluster

import "sort"

// Class is the detector's verdict for one spot.
type Class string

const (
	Occupied Class = "occupied"
	Free     Class = "free"
)

// rowFactor scales the mean box height into the row-join threshold.
const rowFactor = 0.6

// Box is one detected spot in image pixel coordinates.
type Box struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// Spot is a box with its 1-based row-major number.
type Spot struct {
	Number int `json:"number"`
	Box
}

// Summary partitions numbered spots by class.
type Summary struct {
	Total    int   `json:"total"`
	Occupied []int `json:"occupied"`
	Free     []int `json:"free"`
}

// Order groups boxes into rows and numbers them left to right, top to bottom.
//
// Boxes are taken in top-y order. A box joins the first row whose first
// member's top-y is within 0.6 times the mean box height, otherwise it opens
// a new row. Rows keep the order they were opened in.
func Order(boxes []Box) []Spot {
	if len(boxes) == 0 {
		return []Spot{}
	}

	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y1 < sorted[j].Y1
	})

	var sum float64
	for _, b := range sorted {
		sum += b.Height()
	}
	threshold := rowFactor * sum / float64(len(sorted))

	var rows [][]Box
	for _, b := range sorted {
		placed := false
		for i := range rows {
			if abs(b.Y1-rows[i][0].Y1) < threshold {
				rows[i] = append(rows[i], b)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []Box{b})
		}
	}

	spots := make([]Spot, 0, len(sorted))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].X1 < row[j].X1
		})
		for _, b := range row {
			spots = append(spots, Spot{Number: len(spots) + 1, Box: b})
		}
	}
	return spots
}

// Summarize splits ordered spots into occupied and free number lists.
func Summarize(spots []Spot) Summary {
	s := Summary{Total: len(spots), Occupied: []int{}, Free: []int{}}
	for _, spot := range spots {
		switch spot.Class {
		case Occupied:
			s.Occupied = append(s.Occupied, spot.Number)
		case Free:
			s.Free = append(s.Free, spot.Number)
		}
	}
	return s
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
