// Package combine reassembles per-unit results into the single ordered
// answer returned to the caller.
package combine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"NetSage/internal/model"
)

// ErrAllProvidersFailed signals that no unit produced text; the orchestrator
// answers with the local fallback instead of an empty response.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Combiner merges unit results in strict chunk order.
type Combiner struct{}

// New creates a combiner.
func New() *Combiner {
	return &Combiner{}
}

// Combine sorts the results by chunk index and renders one answer.
// Completion order does not matter; the input may arrive scrambled.
// Failed units appear as explicit placeholders naming the chunk and the
// failure, so partial coverage stays visible. When not a single unit
// succeeded, Combine returns ErrAllProvidersFailed instead of a
// placeholder-only answer.
func (c *Combiner) Combine(results []model.UnitResult, elapsed time.Duration) (string, error) {
	if len(results) == 0 {
		return "", ErrAllProvidersFailed
	}

	ordered := make([]model.UnitResult, len(results))
	copy(ordered, results)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})

	var succeeded int
	for _, r := range ordered {
		if r.Success {
			succeeded++
		}
	}
	if succeeded == 0 {
		return "", ErrAllProvidersFailed
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Multi-Chunk Analysis Summary (%d/%d chunks analyzed successfully)\n\n",
		succeeded, len(ordered))

	for _, r := range ordered {
		if r.Success {
			fmt.Fprintf(&sb, "### Chunk %d Analysis (%s):\n", r.ChunkIndex+1, r.Provider)
			sb.WriteString(strings.TrimSpace(r.Text))
			sb.WriteString("\n\n---\n\n")
			continue
		}
		fmt.Fprintf(&sb, "### Chunk %d Analysis: failed\n", r.ChunkIndex+1)
		fmt.Fprintf(&sb, "No answer for this chunk (%s via %s: %s).\n\n---\n\n",
			kindOrUnknown(r.ErrKind), providerOrNone(r.Provider), r.Err)
	}

	if failed := len(ordered) - succeeded; failed > 0 {
		fmt.Fprintf(&sb, "Note: %d of %d chunks failed to analyze; their evidence is not covered above.\n\n",
			failed, len(ordered))
	}

	sb.WriteString("Performance Summary:\n")
	fmt.Fprintf(&sb, "- Total processing time: %.2f seconds\n", elapsed.Seconds())
	fmt.Fprintf(&sb, "- Providers used: %s\n", strings.Join(providersUsed(ordered), ", "))

	return sb.String(), nil
}

// providersUsed lists the distinct providers behind successful units, in
// name order.
func providersUsed(results []model.UnitResult) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, r := range results {
		if !r.Success {
			continue
		}
		if _, ok := seen[r.Provider]; ok {
			continue
		}
		seen[r.Provider] = struct{}{}
		names = append(names, r.Provider)
	}
	sort.Strings(names)
	return names
}

func kindOrUnknown(kind string) string {
	if kind == "" {
		return "unknown error"
	}
	return kind
}

func providerOrNone(name string) string {
	if name == "" {
		return "no provider"
	}
	return name
}
