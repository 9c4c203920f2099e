// Package orchestrator wires the full query pipeline: triage the record
// set, pack the evidence into work units, fan the units out across the
// active providers and merge whatever came back. It owns all state that
// outlives a single query (provider set, usage counters, audit sink) and
// never returns an error to the caller; total backend failure degrades to
// the local fallback analysis.
package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"NetSage/internal/balance"
	"NetSage/internal/chunker"
	"NetSage/internal/combine"
	"NetSage/internal/config"
	"NetSage/internal/dispatch"
	"NetSage/internal/fallback"
	"NetSage/internal/metrics"
	"NetSage/internal/model"
	"NetSage/internal/provider"
	"NetSage/internal/triage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// noDataText answers queries over an empty record set.
const noDataText = "No traffic records were provided, so there is nothing to analyze. " +
	"Load a capture first, then ask again."

// Orchestrator executes queries end to end. One instance serves the
// whole process; concurrent queries share the selector and sink, which
// guard their own state.
type Orchestrator struct {
	logger *zap.Logger

	filter     *triage.Filter
	aggregator *triage.Aggregator
	summarizer *triage.Summarizer
	builder    *chunker.Builder
	selector   model.Selector
	dispatcher *dispatch.Dispatcher
	combiner   *combine.Combiner
	analyzer   *fallback.Analyzer

	providers []model.Provider
	inactive  []model.ProviderDescriptor
	weights   map[string]int

	sink     model.AuditSink
	notifier model.Notifier

	overallTimeout time.Duration
}

// Option overrides a constructed dependency, mainly for tests and for
// binaries that build sinks and notifiers themselves.
type Option func(*options)

type options struct {
	providers []model.Provider
	probed    bool
	sink      model.AuditSink
	notifier  model.Notifier
	rng       *rand.Rand
}

// WithProviders supplies an already-probed provider set, skipping the
// registry's connection tests.
func WithProviders(providers ...model.Provider) Option {
	return func(o *options) {
		o.providers = providers
		o.probed = true
	}
}

// WithAuditSink routes finished queries into the given sink.
func WithAuditSink(sink model.AuditSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithNotifier publishes completion events through the given notifier.
func WithNotifier(n model.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithRand injects the random source behind selection, making provider
// choice reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// New builds the pipeline from the validated configuration. Unless
// WithProviders is given, every configured provider is probed once here
// and failures are excluded for the process lifetime.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var inactive []model.ProviderDescriptor
	if !o.probed {
		registry := provider.NewRegistry(ctx, cfg.Providers, logger)
		o.providers = registry.Active()
		inactive = registry.Inactive()
	}

	if o.rng == nil {
		seed := cfg.Selection.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		o.rng = rand.New(rand.NewSource(seed))
	}
	if o.sink == nil {
		o.sink = noopSink{}
	}

	weights := cfg.Weights()
	selector, err := balance.New(cfg.Selection.Strategy, o.providers, weights, o.rng)
	if err != nil {
		return nil, err
	}

	retry := dispatch.NewRetryPolicy(
		dispatch.WithMaxAttempts(cfg.Retry.MaxAttempts),
		dispatch.WithBaseDelay(cfg.Retry.BackoffBaseDuration),
		dispatch.WithMaxDelay(cfg.Retry.BackoffMaxDuration),
		dispatch.WithRetryLogger(logger),
	)

	rateLimits := make(map[string]float64, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if pc.RateLimit > 0 {
			rateLimits[pc.Name] = pc.RateLimit
		}
	}

	return &Orchestrator{
		logger:         logger,
		filter:         triage.NewFilter(cfg.Triage),
		aggregator:     triage.NewAggregator(cfg.Triage.SampleSize),
		summarizer:     triage.NewSummarizer(cfg.Triage.TopN),
		builder:        chunker.NewBuilder(cfg.Chunking.MaxChunkBytes, cfg.Chunking.MaxChunkItems),
		selector:       selector,
		dispatcher:     dispatch.NewDispatcher(selector, retry, cfg.Timeouts.PerUnitDuration, rateLimits, logger),
		combiner:       combine.New(),
		analyzer:       fallback.New(),
		providers:      o.providers,
		inactive:       inactive,
		weights:        weights,
		sink:           o.sink,
		notifier:       o.notifier,
		overallTimeout: cfg.Timeouts.OverallDuration,
	}, nil
}

// Query answers one prompt over the record set. It always returns a
// response: partial backend failures show up as placeholders in the
// combined text, and total failure flips UsedFallback with the local
// analysis as the answer.
func (o *Orchestrator) Query(ctx context.Context, records []*model.Record, prompt string) *model.AggregateResponse {
	start := time.Now()
	resp := &model.AggregateResponse{
		QueryID:   uuid.NewString(),
		Prompt:    prompt,
		StartedAt: start,
	}

	if len(records) == 0 {
		resp.CombinedText = noDataText
		resp.Elapsed = time.Since(start)
		metrics.QueriesTotal.WithLabelValues("no_data").Inc()
		o.finish(ctx, resp)
		return resp
	}

	clusters := o.cluster(records)
	units := o.builder.Build(o.summarizer.Summarize(clusters))
	resp.TotalChunks = len(units)

	o.logger.Info("dispatching query",
		zap.String("query_id", resp.QueryID),
		zap.Int("records", len(records)),
		zap.Int("clusters", len(clusters)),
		zap.Int("chunks", len(units)),
		zap.Int("providers", len(o.providers)))

	qctx, cancel := context.WithTimeout(ctx, o.overallTimeout)
	defer cancel()

	results := o.dispatcher.Dispatch(qctx, units, prompt)
	resp.UnitResults = results
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	resp.Providers = successfulProviders(results)

	text, err := o.combiner.Combine(results, time.Since(start))
	switch {
	case err == nil:
		resp.CombinedText = text
		metrics.QueriesTotal.WithLabelValues("combined").Inc()
	case errors.Is(err, combine.ErrAllProvidersFailed):
		o.logger.Warn("all work units failed, falling back to local analysis",
			zap.String("query_id", resp.QueryID),
			zap.Int("chunks", len(units)))
		resp.CombinedText = o.analyzer.Analyze(prompt, clusters, triage.Statistics(records))
		resp.UsedFallback = true
		metrics.QueriesTotal.WithLabelValues("fallback").Inc()
	}

	resp.Elapsed = time.Since(start)
	o.finish(ctx, resp)
	return resp
}

// LocalAnalyze answers without touching any backend. It is the explicit
// local-only mode; the response always carries the fallback flag.
func (o *Orchestrator) LocalAnalyze(ctx context.Context, records []*model.Record, prompt string) *model.AggregateResponse {
	start := time.Now()
	resp := &model.AggregateResponse{
		QueryID:      uuid.NewString(),
		Prompt:       prompt,
		StartedAt:    start,
		UsedFallback: true,
	}

	if len(records) == 0 {
		resp.UsedFallback = false
		resp.CombinedText = noDataText
		resp.Elapsed = time.Since(start)
		metrics.QueriesTotal.WithLabelValues("no_data").Inc()
		o.finish(ctx, resp)
		return resp
	}

	clusters := o.cluster(records)
	resp.CombinedText = o.analyzer.Analyze(prompt, clusters, triage.Statistics(records))
	resp.Elapsed = time.Since(start)
	metrics.QueriesTotal.WithLabelValues("local").Inc()
	o.finish(ctx, resp)
	return resp
}

// cluster applies the suspicion filter and groups the result. When the
// filter flags nothing the full set is clustered instead; an empty
// analysis of a benign capture is not acceptable.
func (o *Orchestrator) cluster(records []*model.Record) []*model.Cluster {
	flagged := o.filter.Flag(records)
	if len(flagged) == 0 {
		o.logger.Debug("no records flagged, clustering the full set",
			zap.Int("records", len(records)))
		return o.aggregator.ClusterAll(records)
	}
	return o.aggregator.Cluster(flagged)
}

// finish records the response and publishes the completion event.
// Neither failure reaches the caller.
func (o *Orchestrator) finish(ctx context.Context, resp *model.AggregateResponse) {
	if err := o.sink.Record(ctx, resp); err != nil {
		o.logger.Warn("failed to record query in audit sink",
			zap.String("query_id", resp.QueryID),
			zap.Error(err))
	}
	if o.notifier != nil {
		if err := o.notifier.Notify(resp); err != nil {
			o.logger.Warn("failed to publish completion event",
				zap.String("query_id", resp.QueryID),
				zap.Error(err))
		}
	}
}

// Providers describes the configured backends: the active set with live
// usage counts, then the ones excluded by the startup probe.
func (o *Orchestrator) Providers() []model.ProviderDescriptor {
	usage := o.selector.Usage()

	out := make([]model.ProviderDescriptor, 0, len(o.providers)+len(o.inactive))
	for _, p := range o.providers {
		out = append(out, model.ProviderDescriptor{
			Name:           p.Name(),
			Weight:         o.weights[p.Name()],
			MaxContextSize: p.MaxContextSize(),
			Alive:          true,
			UsageCount:     usage[p.Name()],
		})
	}
	out = append(out, o.inactive...)
	return out
}

// SuggestedQueries returns curated prompts for interactive surfaces.
func (o *Orchestrator) SuggestedQueries() []string {
	return []string{
		"What are the top 5 source IP addresses?",
		"Are there any suspicious patterns in this traffic?",
		"What protocols are being used most frequently?",
		"Show me the most common destination ports",
		"Is there any evidence of port scanning?",
		"Summarize the overall network activity",
		"Are there any potential security threats?",
		"What is the average packet size?",
		"Show me unusual traffic patterns",
		"Are there any failed connection attempts?",
	}
}

// Close releases the sink and the notifier.
func (o *Orchestrator) Close() {
	if err := o.sink.Close(); err != nil {
		o.logger.Warn("failed to close audit sink", zap.Error(err))
	}
	if o.notifier != nil {
		o.notifier.Close()
	}
}

func successfulProviders(results []model.UnitResult) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, r := range results {
		if !r.Success {
			continue
		}
		if _, ok := seen[r.Provider]; ok {
			continue
		}
		seen[r.Provider] = struct{}{}
		names = append(names, r.Provider)
	}
	sort.Strings(names)
	return names
}

// noopSink keeps the finish path unconditional when auditing is off.
type noopSink struct{}

func (noopSink) Record(context.Context, *model.AggregateResponse) error { return nil }
func (noopSink) Close() error                                           { return nil }
