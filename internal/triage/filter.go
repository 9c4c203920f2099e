// Package triage reduces a raw record set to the evidence worth sending
// to inference backends: it flags suspicious records, groups them by
// endpoint pair and projects the groups into bounded summaries.
package triage

import (
	"NetSage/internal/config"
	"NetSage/internal/model"
)

// Filter flags records of interest from a full record set.
type Filter struct {
	floodThreshold int
	blacklist      map[uint16]struct{}
}

// NewFilter creates a filter with the configured heuristics.
func NewFilter(cfg config.TriageConfig) *Filter {
	blacklist := make(map[uint16]struct{}, len(cfg.BlacklistedPorts))
	for _, port := range cfg.BlacklistedPorts {
		blacklist[port] = struct{}{}
	}
	return &Filter{
		floodThreshold: cfg.FloodThreshold,
		blacklist:      blacklist,
	}
}

// Flag returns the suspicious subset with reasons attached. The first
// pass counts connection attempts per source so the flood heuristic sees
// the whole set; the second applies the per-record checks.
//
// An empty result is not an error: benign captures legitimately contain
// zero suspicious records, and the pipeline then clusters the full set.
func (f *Filter) Flag(records []*model.Record) []model.FlaggedRecord {
	attempts := make(map[string]int)
	for _, r := range records {
		if isConnAttempt(r) {
			attempts[r.SrcIP.String()]++
		}
	}

	var flagged []model.FlaggedRecord
	for _, r := range records {
		if reason, suspicious := f.check(r, attempts); suspicious {
			flagged = append(flagged, model.FlaggedRecord{Record: r, Reason: reason})
		}
	}
	return flagged
}

func (f *Filter) check(r *model.Record, attempts map[string]int) (model.SuspicionReason, bool) {
	if r.SrcIP == nil || r.DstIP == nil {
		return model.ReasonMalformed, true
	}
	if isConnAttempt(r) && attempts[r.SrcIP.String()] > f.floodThreshold {
		return model.ReasonFloodSignature, true
	}
	// Only TCP and UDP records carry ports; port 0 on anything else is
	// just the zero value.
	if r.Protocol == "TCP" || r.Protocol == "UDP" {
		if _, bad := f.blacklist[r.SrcPort]; bad {
			return model.ReasonBlacklistedPort, true
		}
		if _, bad := f.blacklist[r.DstPort]; bad {
			return model.ReasonBlacklistedPort, true
		}
	}
	if malformedFlags(r) {
		return model.ReasonMalformed, true
	}
	return "", false
}

// isConnAttempt reports a bare SYN, the unit the flood heuristic counts.
func isConnAttempt(r *model.Record) bool {
	return r.Protocol == "TCP" && r.Flags&model.FlagSYN != 0 && r.Flags&model.FlagACK == 0
}

// malformedFlags reports TCP control-bit combinations that never occur in
// legitimate traffic: SYN+FIN, null scans and xmas scans.
func malformedFlags(r *model.Record) bool {
	if r.Protocol != "TCP" {
		return false
	}
	flags := r.Flags
	if flags&model.FlagSYN != 0 && flags&model.FlagFIN != 0 {
		return true
	}
	if flags == 0 {
		return true
	}
	xmas := model.FlagFIN | model.FlagPSH | model.FlagURG
	return flags&xmas == xmas
}
