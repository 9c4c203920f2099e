// Package chunker partitions cluster summaries into work units that
// respect the per-call size limits of the inference backends.
package chunker

import (
	"NetSage/internal/model"
)

// Builder packs summaries into work units under two independent caps:
// maximum byte size and maximum item count.
type Builder struct {
	maxBytes int
	maxItems int
}

// NewBuilder creates a builder with the configured caps. Both caps must
// be positive; config validation enforces that upstream.
func NewBuilder(maxBytes, maxItems int) *Builder {
	return &Builder{maxBytes: maxBytes, maxItems: maxItems}
}

// Build greedily packs summaries in order. A unit is sealed and a new one
// started whenever adding the next summary would exceed either cap. A
// single summary larger than the byte cap cannot be split and travels
// alone. Units are indexed 0..N-1 in input order; Total is fixed once the
// last unit is sealed.
func (b *Builder) Build(summaries []model.ClusterSummary) []*model.WorkUnit {
	if len(summaries) == 0 {
		return nil
	}

	var units []*model.WorkUnit
	current := &model.WorkUnit{}
	for _, s := range summaries {
		size := len(s.Text)
		if len(current.Summaries) > 0 &&
			(current.ByteSize+size > b.maxBytes || len(current.Summaries)+1 > b.maxItems) {
			units = append(units, current)
			current = &model.WorkUnit{}
		}
		current.Summaries = append(current.Summaries, s)
		current.ByteSize += size
	}
	units = append(units, current)

	for i, u := range units {
		u.Index = i
		u.Total = len(units)
	}
	return units
}
