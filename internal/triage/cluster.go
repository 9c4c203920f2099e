package triage

import (
	"net"
	"sort"

	"NetSage/internal/model"
)

// Aggregator groups records by their (source, destination) endpoint pair.
type Aggregator struct {
	sampleSize int
}

// NewAggregator creates an aggregator that keeps at most sampleSize
// record references per cluster.
func NewAggregator(sampleSize int) *Aggregator {
	return &Aggregator{sampleSize: sampleSize}
}

// Cluster groups flagged records. The returned slice is sorted by key so
// identical input sets produce identical output regardless of record
// order.
func (a *Aggregator) Cluster(flagged []model.FlaggedRecord) []*model.Cluster {
	byKey := make(map[model.ClusterKey]*model.Cluster)
	for _, fr := range flagged {
		a.add(byKey, fr.Record, fr.Reason)
	}
	return sortClusters(byKey)
}

// ClusterAll groups an unfiltered record set, leaving reasons empty. Used
// when triage flagged nothing but the query still needs evidence.
func (a *Aggregator) ClusterAll(records []*model.Record) []*model.Cluster {
	byKey := make(map[model.ClusterKey]*model.Cluster)
	for _, r := range records {
		a.add(byKey, r, "")
	}
	return sortClusters(byKey)
}

func (a *Aggregator) add(byKey map[model.ClusterKey]*model.Cluster, r *model.Record, reason model.SuspicionReason) {
	key := model.ClusterKey{Src: endpoint(r.SrcIP), Dst: endpoint(r.DstIP)}
	c, ok := byKey[key]
	if !ok {
		c = &model.Cluster{
			Key:       key,
			Protocols: make(map[string]int),
			Ports:     make(map[uint16]int),
			Reasons:   make(map[model.SuspicionReason]int),
		}
		byKey[key] = c
	}

	c.RecordCount++
	if r.Protocol != "" {
		c.Protocols[r.Protocol]++
	}
	if r.SrcPort != 0 {
		c.Ports[r.SrcPort]++
	}
	if r.DstPort != 0 {
		c.Ports[r.DstPort]++
	}
	if reason != "" {
		c.Reasons[reason]++
	}
	if len(c.Sample) < a.sampleSize {
		c.Sample = append(c.Sample, r)
	}
}

func endpoint(ip net.IP) string {
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}

func sortClusters(byKey map[model.ClusterKey]*model.Cluster) []*model.Cluster {
	clusters := make([]*model.Cluster, 0, len(byKey))
	for _, c := range byKey {
		clusters = append(clusters, c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Key.Src != clusters[j].Key.Src {
			return clusters[i].Key.Src < clusters[j].Key.Src
		}
		return clusters[i].Key.Dst < clusters[j].Key.Dst
	})
	return clusters
}
