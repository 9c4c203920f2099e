package triage

import (
	"testing"
	"time"

	"NetSage/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizerBoundsEnumerableFields(t *testing.T) {
	c := &model.Cluster{
		Key:         model.ClusterKey{Src: "10.0.0.1", Dst: "10.0.0.2"},
		RecordCount: 500,
		Protocols:   map[string]int{"TCP": 400, "UDP": 80, "ICMP": 20},
		Ports:       map[uint16]int{},
		Reasons:     map[model.SuspicionReason]int{model.ReasonFloodSignature: 490, model.ReasonBlacklistedPort: 10},
	}
	// Far more distinct ports than the summary may list.
	for p := uint16(1000); p < 1200; p++ {
		c.Ports[p] = int(p % 7)
	}
	c.Ports[445] = 300

	s := NewSummarizer(5)
	summaries := s.Summarize([]*model.Cluster{c})
	require.Len(t, summaries, 1)

	sum := summaries[0]
	assert.Len(t, sum.TopPorts, 5, "ports must be truncated to top-N")
	assert.Equal(t, uint16(445), sum.TopPorts[0], "most frequent port first")
	assert.Equal(t, []string{"TCP", "UDP", "ICMP"}, sum.TopProtocols)
	assert.Equal(t, []string{string(model.ReasonFloodSignature), string(model.ReasonBlacklistedPort)}, sum.TopReasons)
	assert.NotEmpty(t, sum.Text)
	assert.Contains(t, sum.Text, "10.0.0.1 -> 10.0.0.2: 500 records")
}

func TestSummarizerIncludesSampleLines(t *testing.T) {
	r := tcpRecord("10.0.0.1", "10.0.0.2", 40000, 443, model.FlagSYN)
	r.Timestamp = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	c := &model.Cluster{
		Key:         model.ClusterKey{Src: "10.0.0.1", Dst: "10.0.0.2"},
		RecordCount: 1,
		Protocols:   map[string]int{"TCP": 1},
		Ports:       map[uint16]int{443: 1},
		Reasons:     map[model.SuspicionReason]int{},
		Sample:      []*model.Record{r},
	}

	sum := NewSummarizer(5).Summarize([]*model.Cluster{c})[0]
	require.Len(t, sum.SampleLines, 1)
	assert.Contains(t, sum.SampleLines[0], "10.0.0.1:40000 -> 10.0.0.2:443")
	assert.Contains(t, sum.SampleLines[0], "flags=SYN")
	assert.Contains(t, sum.Text, sum.SampleLines[0])
}

func TestStatisticsDigest(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	var records []*model.Record
	for i := 0; i < 6; i++ {
		r := tcpRecord("10.0.0.1", "10.0.0.2", 40000+uint16(i), 443, model.FlagACK)
		r.Timestamp = base.Add(time.Duration(i) * time.Second)
		r.Length = 100
		records = append(records, r)
	}
	udp := &model.Record{
		Timestamp: base.Add(time.Minute),
		SrcIP:     records[0].DstIP,
		DstIP:     records[0].SrcIP,
		SrcPort:   5353,
		DstPort:   53,
		Protocol:  "UDP",
		Length:    40,
	}
	records = append(records, udp)

	stats := Statistics(records)

	assert.Equal(t, 7, stats.TotalRecords)
	assert.Equal(t, int64(6*100+40), stats.TotalBytes)
	assert.Equal(t, map[string]int{"TCP": 6, "UDP": 1}, stats.ProtocolCounts)

	require.NotEmpty(t, stats.TopSources)
	assert.Equal(t, AddressCount{Address: "10.0.0.1", Count: 6}, stats.TopSources[0])
	require.NotEmpty(t, stats.TopTCPPorts)
	assert.Equal(t, PortCount{Port: 443, Count: 6}, stats.TopTCPPorts[0])
	assert.Equal(t, []PortCount{{Port: 53, Count: 1}}, stats.TopUDPPorts)

	assert.Equal(t, base, stats.FirstSeen)
	assert.Equal(t, base.Add(time.Minute), stats.LastSeen)
}
