package segment

import (
	"image"
	"sort"
)

type candidate struct {
	box    image.Rectangle
	score  float32
	coeffs []float32
}

// nms keeps the highest scoring boxes, dropping any box whose IoU with an
// already kept box exceeds thr.
func nms(dets []candidate, thr float32) []candidate {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].score > dets[j].score
	})

	var kept []candidate
	used := make([]bool, len(dets))
	for i := 0; i < len(dets); i++ {
		if used[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if used[j] {
				continue
			}
			if iou(dets[i].box, dets[j].box) > thr {
				used[j] = true
			}
		}
	}
	return kept
}

func iou(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float32(inter.Dx() * inter.Dy())
	union := float32(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}
