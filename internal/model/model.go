package model

import (
	"net"
	"strings"
	"time"
)

// TCPFlags is the bitmask of TCP control bits observed on a record.
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

// String renders the set control bits in wire order, or "." when none are set.
func (f TCPFlags) String() string {
	if f == 0 {
		return "."
	}
	names := []struct {
		bit  TCPFlags
		name string
	}{
		{FlagFIN, "FIN"},
		{FlagSYN, "SYN"},
		{FlagRST, "RST"},
		{FlagPSH, "PSH"},
		{FlagACK, "ACK"},
		{FlagURG, "URG"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Record holds the metadata of a single parsed traffic record. The
// orchestration core treats records as opaque evidence; only the triage
// heuristics interpret the fields.
type Record struct {
	Timestamp time.Time
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Protocol  string
	Flags     TCPFlags
	Length    int
	Layers    []string
}

// SuspicionReason classifies why the filter flagged a record.
type SuspicionReason string

const (
	ReasonFloodSignature  SuspicionReason = "flood_signature"
	ReasonBlacklistedPort SuspicionReason = "blacklisted_port"
	ReasonMalformed       SuspicionReason = "malformed"
)

// FlaggedRecord is one suspicious record together with the reason the
// filter attached to it.
type FlaggedRecord struct {
	Record *Record
	Reason SuspicionReason
}
