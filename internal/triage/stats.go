package triage

import (
	"time"

	"NetSage/internal/model"
)

// AddressCount pairs an endpoint with how many records it appeared on.
type AddressCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// PortCount pairs a destination port with its record count.
type PortCount struct {
	Port  uint16 `json:"port"`
	Count int    `json:"count"`
}

// Stats is the deterministic statistical digest of a record set. The
// fallback analyzer and the gateway's statistics endpoint both consume it.
type Stats struct {
	TotalRecords    int            `json:"total_records"`
	TotalBytes      int64          `json:"total_bytes"`
	TopSources      []AddressCount `json:"top_sources"`
	TopDestinations []AddressCount `json:"top_destinations"`
	ProtocolCounts  map[string]int `json:"protocol_counts"`
	TopTCPPorts     []PortCount    `json:"top_tcp_ports"`
	TopUDPPorts     []PortCount    `json:"top_udp_ports"`
	FirstSeen       time.Time      `json:"first_seen"`
	LastSeen        time.Time      `json:"last_seen"`
}

const statsTopN = 10

// Statistics computes the digest in a single pass over the records.
func Statistics(records []*model.Record) *Stats {
	stats := &Stats{ProtocolCounts: make(map[string]int)}

	sources := make(map[string]int)
	destinations := make(map[string]int)
	tcpPorts := make(map[uint16]int)
	udpPorts := make(map[uint16]int)

	for _, r := range records {
		stats.TotalRecords++
		stats.TotalBytes += int64(r.Length)

		sources[endpoint(r.SrcIP)]++
		destinations[endpoint(r.DstIP)]++

		proto := r.Protocol
		if proto == "" {
			proto = "Other"
		}
		stats.ProtocolCounts[proto]++

		switch proto {
		case "TCP":
			if r.DstPort != 0 {
				tcpPorts[r.DstPort]++
			}
		case "UDP":
			if r.DstPort != 0 {
				udpPorts[r.DstPort]++
			}
		}

		if !r.Timestamp.IsZero() {
			if stats.FirstSeen.IsZero() || r.Timestamp.Before(stats.FirstSeen) {
				stats.FirstSeen = r.Timestamp
			}
			if r.Timestamp.After(stats.LastSeen) {
				stats.LastSeen = r.Timestamp
			}
		}
	}

	for _, addr := range topEntries(sources, statsTopN) {
		stats.TopSources = append(stats.TopSources, AddressCount{Address: addr, Count: sources[addr]})
	}
	for _, addr := range topEntries(destinations, statsTopN) {
		stats.TopDestinations = append(stats.TopDestinations, AddressCount{Address: addr, Count: destinations[addr]})
	}
	for _, port := range topEntries(tcpPorts, statsTopN) {
		stats.TopTCPPorts = append(stats.TopTCPPorts, PortCount{Port: port, Count: tcpPorts[port]})
	}
	for _, port := range topEntries(udpPorts, statsTopN) {
		stats.TopUDPPorts = append(stats.TopUDPPorts, PortCount{Port: port, Count: udpPorts[port]})
	}

	return stats
}
