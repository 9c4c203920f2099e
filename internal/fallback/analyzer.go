// Package fallback produces a deterministic, network-free answer from
// the cluster set. It backs the pipeline when every provider call failed
// and doubles as the explicit local-only analysis mode.
package fallback

import (
	"fmt"
	"sort"
	"strings"

	"NetSage/internal/model"
	"NetSage/internal/triage"
)

// localNote closes every fallback answer so callers can tell a local
// analysis from backend-generated text.
const localNote = "Note: this is a local statistical analysis; no inference backend was consulted."

// Analyzer renders statistical answers routed by prompt keywords.
type Analyzer struct{}

// New creates an analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze answers the prompt from the clusters and the precomputed
// record statistics. It always succeeds; identical input yields an
// identical answer.
func (a *Analyzer) Analyze(prompt string, clusters []*model.Cluster, stats *triage.Stats) string {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "top") &&
		(strings.Contains(lower, "ip") || strings.Contains(lower, "address") || strings.Contains(lower, "talker")):
		return a.topAddresses(stats)
	case strings.Contains(lower, "suspicious") || strings.Contains(lower, "unusual") ||
		strings.Contains(lower, "anomal") || strings.Contains(lower, "threat") || strings.Contains(lower, "attack"):
		return a.suspicious(clusters, stats)
	case strings.Contains(lower, "protocol"):
		return a.protocols(stats)
	case strings.Contains(lower, "port"):
		return a.ports(stats)
	default:
		return a.general(clusters, stats)
	}
}

func (a *Analyzer) topAddresses(stats *triage.Stats) string {
	var sb strings.Builder
	sb.WriteString("Top IP Addresses Analysis:\n\n")

	sb.WriteString("Top source IPs:\n")
	if len(stats.TopSources) == 0 {
		sb.WriteString("- none observed\n")
	}
	for _, ac := range stats.TopSources {
		fmt.Fprintf(&sb, "- %s: %d records\n", ac.Address, ac.Count)
	}

	sb.WriteString("\nTop destination IPs:\n")
	if len(stats.TopDestinations) == 0 {
		sb.WriteString("- none observed\n")
	}
	for _, ac := range stats.TopDestinations {
		fmt.Fprintf(&sb, "- %s: %d records\n", ac.Address, ac.Count)
	}

	sb.WriteString("\n" + localNote)
	return sb.String()
}

func (a *Analyzer) suspicious(clusters []*model.Cluster, stats *triage.Stats) string {
	flagged := 0
	reasonTotals := make(map[string]int)
	for _, c := range clusters {
		if len(c.Reasons) > 0 {
			flagged++
		}
		for reason, n := range c.Reasons {
			reasonTotals[string(reason)] += n
		}
	}

	var sb strings.Builder
	sb.WriteString("Suspicious Activity Analysis:\n\n")
	fmt.Fprintf(&sb, "Flagged clusters: %d of %d\n", flagged, len(clusters))

	if len(reasonTotals) > 0 {
		sb.WriteString("Flag reasons:\n")
		for _, reason := range sortedKeys(reasonTotals) {
			fmt.Fprintf(&sb, "- %s: %d records\n", reason, reasonTotals[reason])
		}
	} else {
		sb.WriteString("No records were flagged by the suspicion heuristics.\n")
	}

	fmt.Fprintf(&sb, "Protocol distribution: %s\n", protocolLine(stats.ProtocolCounts))
	sb.WriteString("\n" + localNote)
	return sb.String()
}

func (a *Analyzer) protocols(stats *triage.Stats) string {
	var sb strings.Builder
	sb.WriteString("Protocol Analysis:\n\n")

	if len(stats.ProtocolCounts) == 0 {
		sb.WriteString("No protocols observed.\n")
	} else {
		sb.WriteString("Protocol distribution:\n")
		names := sortedKeys(stats.ProtocolCounts)
		for _, name := range names {
			fmt.Fprintf(&sb, "- %s: %d records\n", name, stats.ProtocolCounts[name])
		}

		most := names[0]
		for _, name := range names[1:] {
			if stats.ProtocolCounts[name] > stats.ProtocolCounts[most] {
				most = name
			}
		}
		fmt.Fprintf(&sb, "\nMost common protocol: %s\n", most)
		fmt.Fprintf(&sb, "Unique protocols: %d\n", len(names))
	}

	sb.WriteString("\n" + localNote)
	return sb.String()
}

func (a *Analyzer) ports(stats *triage.Stats) string {
	var sb strings.Builder
	sb.WriteString("Port Analysis:\n\n")

	sb.WriteString("Top TCP destination ports:\n")
	if len(stats.TopTCPPorts) == 0 {
		sb.WriteString("- none observed\n")
	}
	for _, pc := range stats.TopTCPPorts {
		fmt.Fprintf(&sb, "- %d: %d records\n", pc.Port, pc.Count)
	}

	sb.WriteString("\nTop UDP destination ports:\n")
	if len(stats.TopUDPPorts) == 0 {
		sb.WriteString("- none observed\n")
	}
	for _, pc := range stats.TopUDPPorts {
		fmt.Fprintf(&sb, "- %d: %d records\n", pc.Port, pc.Count)
	}

	sb.WriteString("\nWell-known services:\n")
	fmt.Fprintf(&sb, "- HTTP/HTTPS (80/443): %s\n", presence(hasPort(stats.TopTCPPorts, 80) || hasPort(stats.TopTCPPorts, 443)))
	fmt.Fprintf(&sb, "- SSH (22): %s\n", presence(hasPort(stats.TopTCPPorts, 22)))
	fmt.Fprintf(&sb, "- DNS (53): %s\n", presence(hasPort(stats.TopUDPPorts, 53)))

	sb.WriteString("\n" + localNote)
	return sb.String()
}

func (a *Analyzer) general(clusters []*model.Cluster, stats *triage.Stats) string {
	flagged := 0
	for _, c := range clusters {
		if len(c.Reasons) > 0 {
			flagged++
		}
	}

	var sb strings.Builder
	sb.WriteString("Network Traffic Summary:\n\n")
	fmt.Fprintf(&sb, "- Total records: %d\n", stats.TotalRecords)
	fmt.Fprintf(&sb, "- Total bytes: %d\n", stats.TotalBytes)
	fmt.Fprintf(&sb, "- Endpoint pairs: %d\n", len(clusters))
	fmt.Fprintf(&sb, "- Flagged clusters: %d\n", flagged)
	fmt.Fprintf(&sb, "- Protocols: %s\n", protocolLine(stats.ProtocolCounts))
	if !stats.FirstSeen.IsZero() {
		fmt.Fprintf(&sb, "- Capture window: %s to %s\n",
			stats.FirstSeen.Format("2006-01-02 15:04:05"),
			stats.LastSeen.Format("2006-01-02 15:04:05"))
	}

	sb.WriteString("\n" + localNote)
	return sb.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// protocolLine renders "TCP=120, UDP=30" in protocol name order.
func protocolLine(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(counts))
	for _, name := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

func hasPort(ports []triage.PortCount, want uint16) bool {
	for _, pc := range ports {
		if pc.Port == want {
			return true
		}
	}
	return false
}

func presence(found bool) string {
	if found {
		return "present"
	}
	return "not detected"
}
