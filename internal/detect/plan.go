package detect

import (
	"panel-extract/internal/config"
	"panel-extract/internal/debugdump"
	"panel-extract/internal/quality"
	"panel-extract/internal/segment"
	"panel-extract/pkg/geometry"
)

// PlanOptions selects the strategies of a cascade.
type PlanOptions struct {
	Params config.Params

	// Points, when set, make the operator quad the only strategy.
	Points []geometry.Point2D

	// Model enables the segmentation strategy. PreferModel runs it before
	// the heuristics instead of after them.
	Model       segment.Segmenter
	PreferModel bool

	Debug *debugdump.Dir
}

// Plan returns the ordered strategies for an image of type t.
//
//	standard: [segment] adaptive otsu extent [segment]
//	EL:       [segment] el adaptive otsu extent [segment]
func Plan(t quality.ImageType, opts PlanOptions) []Strategy {
	if len(opts.Points) > 0 {
		return []Strategy{Manual{Points: opts.Points}}
	}

	p := opts.Params
	var plan []Strategy
	var seg Strategy
	if opts.Model != nil {
		seg = Segment{
			Model:           opts.Model,
			Params:          p.Segment,
			RejectElongated: t == quality.Electroluminescence,
			Debug:           opts.Debug,
		}
	}
	if seg != nil && opts.PreferModel {
		plan = append(plan, seg)
	}

	if t == quality.Electroluminescence {
		plan = append(plan, EL{Params: p.EL, MaxRegionFraction: p.MaxRegionFraction})
	}
	plan = append(plan,
		Adaptive{Params: p.Adaptive, MaxRegionFraction: p.MaxRegionFraction},
		Otsu{Params: p.Otsu, MaxRegionFraction: p.MaxRegionFraction},
		Extent{Params: p.Extent, MaxRegionFraction: p.MaxRegionFraction},
	)

	if seg != nil && !opts.PreferModel {
		plan = append(plan, seg)
	}
	return plan
}

// Names lists the strategy names of plan in order.
func Names(plan []Strategy) []string {
	names := make([]string, len(plan))
	for i, s := range plan {
		names[i] = s.Name()
	}
	return names
}
