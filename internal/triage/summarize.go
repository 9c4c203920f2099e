package triage

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"NetSage/internal/model"
)

// Summarizer projects clusters into summaries whose size is bounded
// independent of the underlying record volume.
type Summarizer struct {
	topN int
}

// NewSummarizer creates a summarizer that lists at most topN protocols,
// ports and reasons per cluster.
func NewSummarizer(topN int) *Summarizer {
	return &Summarizer{topN: topN}
}

// Summarize projects every cluster, preserving cluster order.
func (s *Summarizer) Summarize(clusters []*model.Cluster) []model.ClusterSummary {
	summaries := make([]model.ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		summaries = append(summaries, s.summarizeOne(c))
	}
	return summaries
}

func (s *Summarizer) summarizeOne(c *model.Cluster) model.ClusterSummary {
	summary := model.ClusterSummary{
		Src:          c.Key.Src,
		Dst:          c.Key.Dst,
		RecordCount:  c.RecordCount,
		TopProtocols: topEntries(c.Protocols, s.topN),
		TopPorts:     topEntries(c.Ports, s.topN),
	}
	for _, reason := range topEntries(c.Reasons, s.topN) {
		summary.TopReasons = append(summary.TopReasons, string(reason))
	}
	for _, r := range c.Sample {
		summary.SampleLines = append(summary.SampleLines, recordLine(r))
	}
	summary.Text = render(summary)
	return summary
}

// topEntries returns the n most frequent keys. Ties break by key order so
// summaries are deterministic.
func topEntries[K cmp.Ordered](counts map[K]int, n int) []K {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b K) int {
		if d := counts[b] - counts[a]; d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func recordLine(r *model.Record) string {
	return fmt.Sprintf("%s %s %s:%d -> %s:%d len=%d flags=%s",
		r.Timestamp.Format("15:04:05.000"), r.Protocol,
		endpoint(r.SrcIP), r.SrcPort, endpoint(r.DstIP), r.DstPort,
		r.Length, r.Flags)
}

func render(s model.ClusterSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s -> %s: %d records", s.Src, s.Dst, s.RecordCount)
	if len(s.TopProtocols) > 0 {
		fmt.Fprintf(&sb, ", protocols %s", strings.Join(s.TopProtocols, "/"))
	}
	if len(s.TopPorts) > 0 {
		ports := make([]string, len(s.TopPorts))
		for i, p := range s.TopPorts {
			ports[i] = fmt.Sprintf("%d", p)
		}
		fmt.Fprintf(&sb, ", ports %s", strings.Join(ports, ","))
	}
	if len(s.TopReasons) > 0 {
		fmt.Fprintf(&sb, ", flagged: %s", strings.Join(s.TopReasons, ","))
	}
	sb.WriteByte('\n')
	for _, line := range s.SampleLines {
		fmt.Fprintf(&sb, "  %s\n", line)
	}
	return sb.String()
}
