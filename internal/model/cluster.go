package model

// ClusterKey identifies the endpoint pair a cluster aggregates.
type ClusterKey struct {
	Src string
	Dst string
}

// Cluster groups the records sharing one source/destination pair.
// Cluster keys are unique within one query invocation.
type Cluster struct {
	Key         ClusterKey
	RecordCount int
	Protocols   map[string]int
	Ports       map[uint16]int
	Reasons     map[SuspicionReason]int

	// Sample holds the first records seen for this key, capped by the
	// aggregator so clusters stay cheap to carry around.
	Sample []*Record
}

// ClusterSummary is the bounded projection of a Cluster that is sent to
// providers. Enumerable fields are truncated to the most frequent entries,
// so the summary size tracks cluster diversity rather than record volume.
type ClusterSummary struct {
	Src          string
	Dst          string
	RecordCount  int
	TopProtocols []string
	TopPorts     []uint16
	TopReasons   []string
	SampleLines  []string

	// Text is the rendered form included in prompts; its length is what
	// the chunk builder budgets against.
	Text string
}
