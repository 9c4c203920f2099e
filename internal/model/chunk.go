package model

import "strings"

// WorkUnit is one bounded batch of cluster summaries dispatched in a
// single provider call. Units are indexed 0..Total-1 in stable order;
// Total is fixed once the builder has sealed the last unit.
type WorkUnit struct {
	Index     int
	Total     int
	Summaries []ClusterSummary
	ByteSize  int
}

// ItemCount returns the number of summaries packed into the unit.
func (u *WorkUnit) ItemCount() int {
	return len(u.Summaries)
}

// EvidenceText joins the rendered summaries for inclusion in a prompt.
func (u *WorkUnit) EvidenceText() string {
	var sb strings.Builder
	for _, s := range u.Summaries {
		sb.WriteString(s.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
