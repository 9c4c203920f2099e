package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"NetSage/internal/config"
	"NetSage/internal/factory"
	"NetSage/internal/model"
	"NetSage/internal/orchestrator"
	"NetSage/pkg/pcap"

	_ "NetSage/internal/audit"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	pcapPath := flag.String("pcap", "", "Path to the capture file to analyze")
	batchPath := flag.String("batch", "", "File with one question per line")
	local := flag.Bool("local", false, "Answer with the local analyzer only, no AI backends")
	listProviders := flag.Bool("providers", false, "Probe and list the configured AI backends, then exit")
	suggest := flag.Bool("suggest", false, "Print example questions, then exit")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	if *suggest {
		orch := mustOrchestrator(ctx, cfg, logger, orchestrator.WithProviders())
		defer orch.Close()
		fmt.Println("Example questions:")
		for _, q := range orch.SuggestedQueries() {
			fmt.Println("  -", q)
		}
		return
	}

	if *listProviders {
		orch := mustOrchestrator(ctx, cfg, logger)
		defer orch.Close()
		fmt.Printf("%-14s %-8s %-14s %-8s %s\n", "NAME", "WEIGHT", "CONTEXT_BYTES", "ALIVE", "USAGE")
		for _, d := range orch.Providers() {
			fmt.Printf("%-14s %-8d %-14d %-8t %d\n", d.Name, d.Weight, d.MaxContextSize, d.Alive, d.UsageCount)
		}
		return
	}

	questions, err := collectQuestions(*batchPath, flag.Args())
	if err != nil {
		logger.Fatal("failed to read questions", zap.Error(err))
	}
	if len(questions) == 0 {
		fmt.Println("Usage: ns-ask -pcap <capture file> [flags] \"question about the traffic\"")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *pcapPath == "" {
		logger.Fatal("a capture file is required: pass -pcap <file>")
	}

	records, err := pcap.ReadAll(*pcapPath, logger)
	if err != nil {
		logger.Fatal("failed to load capture", zap.Error(err))
	}
	logger.Info("capture loaded", zap.String("file", *pcapPath), zap.Int("records", len(records)))

	sink, err := factory.NewSink(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create audit sink", zap.Error(err))
	}

	opts := []orchestrator.Option{orchestrator.WithAuditSink(sink)}
	if *local {
		// Local mode never talks to a backend, so skip probing too.
		opts = append(opts, orchestrator.WithProviders())
	}
	orch := mustOrchestrator(ctx, cfg, logger, opts...)
	defer orch.Close()

	for i, question := range questions {
		if len(questions) > 1 {
			fmt.Printf("=== Question %d: %s\n\n", i+1, question)
		}
		resp := answer(ctx, orch, records, question, *local)
		fmt.Println(resp.CombinedText)
		if resp.UsedFallback && !*local {
			fmt.Println("\n[answered by the local analyzer: no AI backend produced a usable response]")
		}
		if i < len(questions)-1 {
			fmt.Println()
		}
	}
}

func answer(ctx context.Context, orch *orchestrator.Orchestrator, records []*model.Record, question string, local bool) *model.AggregateResponse {
	if local {
		return orch.LocalAnalyze(ctx, records, question)
	}
	return orch.Query(ctx, records, question)
}

func mustOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	orch, err := orchestrator.New(ctx, cfg, logger, opts...)
	if err != nil {
		logger.Fatal("failed to build orchestrator", zap.Error(err))
	}
	return orch
}

// collectQuestions merges the batch file (one question per line, blank
// lines and #-comments skipped) with any positional question.
func collectQuestions(batchPath string, args []string) ([]string, error) {
	var questions []string
	if batchPath != "" {
		f, err := os.Open(batchPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			questions = append(questions, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		questions = append(questions, strings.Join(args, " "))
	}
	return questions, nil
}
