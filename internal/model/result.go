package model

import "time"

// UnitResult is the outcome of dispatching one work unit, kept for the
// caller's audit trail. Exactly one of Text and Err is meaningful.
type UnitResult struct {
	Provider   string        `json:"provider"`
	ChunkIndex int           `json:"chunk_index"`
	Success    bool          `json:"success"`
	Text       string        `json:"text,omitempty"`
	Err        string        `json:"error,omitempty"`
	ErrKind    string        `json:"error_kind,omitempty"`
	Attempts   int           `json:"attempts"`
	Latency    time.Duration `json:"latency_ns"`
}

// AggregateResponse is the final answer for one query. The core always
// returns one; total backend failure surfaces as UsedFallback, never as
// an error to the caller.
type AggregateResponse struct {
	QueryID      string        `json:"query_id"`
	Prompt       string        `json:"prompt"`
	CombinedText string        `json:"combined_text"`
	UnitResults  []UnitResult  `json:"unit_results,omitempty"`
	UsedFallback bool          `json:"used_fallback"`
	TotalChunks  int           `json:"total_chunks"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Providers    []string      `json:"providers,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}
