package triage

import (
	"net"
	"testing"

	"NetSage/internal/config"
	"NetSage/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpRecord(src, dst string, sport, dport uint16, flags model.TCPFlags) *model.Record {
	return &model.Record{
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP(dst),
		SrcPort:  sport,
		DstPort:  dport,
		Protocol: "TCP",
		Flags:    flags,
		Length:   60,
	}
}

func testTriageConfig() config.TriageConfig {
	return config.TriageConfig{
		FloodThreshold:   config.DefaultFloodThreshold,
		BlacklistedPorts: config.DefaultBlacklistedPorts,
		TopN:             config.DefaultTopN,
		SampleSize:       config.DefaultSampleSize,
	}
}

func TestFilterFlagsFloodSignature(t *testing.T) {
	f := NewFilter(testTriageConfig())

	var records []*model.Record
	for i := 0; i < 12; i++ {
		records = append(records, tcpRecord("10.0.0.1", "10.0.0.2", 40000+uint16(i), 80, model.FlagSYN))
	}
	// A single connection attempt from another host stays clean.
	records = append(records, tcpRecord("10.0.0.3", "10.0.0.2", 40100, 80, model.FlagSYN))

	flagged := f.Flag(records)
	require.Len(t, flagged, 12)
	for _, fr := range flagged {
		assert.Equal(t, model.ReasonFloodSignature, fr.Reason)
		assert.Equal(t, "10.0.0.1", fr.Record.SrcIP.String())
	}
}

func TestFilterFlagsBlacklistedPort(t *testing.T) {
	f := NewFilter(testTriageConfig())

	records := []*model.Record{
		tcpRecord("10.0.0.1", "10.0.0.2", 40000, 31337, model.FlagSYN|model.FlagACK),
		{SrcIP: net.ParseIP("10.0.0.4"), DstIP: net.ParseIP("10.0.0.5"), SrcPort: 6667, DstPort: 53211, Protocol: "UDP"},
	}

	flagged := f.Flag(records)
	require.Len(t, flagged, 2)
	for _, fr := range flagged {
		assert.Equal(t, model.ReasonBlacklistedPort, fr.Reason)
	}
}

func TestFilterFlagsMalformedRecords(t *testing.T) {
	f := NewFilter(testTriageConfig())

	records := []*model.Record{
		// SYN+FIN cannot occur in a legitimate exchange.
		tcpRecord("10.0.0.1", "10.0.0.2", 40000, 443, model.FlagSYN|model.FlagFIN),
		// Null scan: TCP with no control bits.
		tcpRecord("10.0.0.1", "10.0.0.2", 40001, 443, 0),
		// Xmas scan.
		tcpRecord("10.0.0.1", "10.0.0.2", 40002, 443, model.FlagFIN|model.FlagPSH|model.FlagURG),
		// Record with no network layer at all.
		{Protocol: "TCP", Length: 42},
	}

	flagged := f.Flag(records)
	require.Len(t, flagged, 4)
	for _, fr := range flagged {
		assert.Equal(t, model.ReasonMalformed, fr.Reason)
	}
}

func TestFilterKeepsBenignTraffic(t *testing.T) {
	f := NewFilter(testTriageConfig())

	records := []*model.Record{
		tcpRecord("192.168.1.10", "93.184.216.34", 52000, 443, model.FlagSYN),
		tcpRecord("93.184.216.34", "192.168.1.10", 443, 52000, model.FlagSYN|model.FlagACK),
		tcpRecord("192.168.1.10", "93.184.216.34", 52000, 443, model.FlagACK),
		tcpRecord("192.168.1.10", "93.184.216.34", 52000, 443, model.FlagPSH|model.FlagACK),
		{SrcIP: net.ParseIP("192.168.1.10"), DstIP: net.ParseIP("8.8.8.8"), SrcPort: 53412, DstPort: 53, Protocol: "UDP", Length: 80},
	}

	assert.Empty(t, f.Flag(records))
}
