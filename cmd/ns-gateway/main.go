package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"NetSage/internal/audit"
	"NetSage/internal/config"
	"NetSage/internal/factory"
	"NetSage/internal/model"
	"NetSage/internal/notification"
	"NetSage/internal/orchestrator"
	"NetSage/internal/triage"
	"NetSage/pkg/pcap"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
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

	sink, err := factory.NewSink(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create audit sink", zap.Error(err))
	}

	opts := []orchestrator.Option{orchestrator.WithAuditSink(sink)}
	if cfg.Notify.NATSURL != "" {
		notifier, err := notification.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			logger.Fatal("failed to connect notifier", zap.Error(err))
		}
		opts = append(opts, orchestrator.WithNotifier(notifier))
	}

	orch, err := orchestrator.New(context.Background(), cfg, logger, opts...)
	if err != nil {
		logger.Fatal("failed to build orchestrator", zap.Error(err))
	}
	defer orch.Close()

	handler := &apiHandler{orch: orch, sink: sink, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/analyze", handler.analyze).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/analyze/local", handler.analyzeLocal).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/statistics", handler.statistics).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/providers", handler.providers).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/suggestions", handler.suggestions).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/history", handler.history).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		logger.Info("gateway listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("gateway shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("gateway exited")
}

// apiHandler holds the dependencies shared by all routes.
type apiHandler struct {
	orch   *orchestrator.Orchestrator
	sink   model.AuditSink
	logger *zap.Logger
}

// recordPayload is the inline JSON form of one traffic record.
type recordPayload struct {
	Timestamp time.Time `json:"timestamp"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	SrcPort   uint16    `json:"src_port"`
	DstPort   uint16    `json:"dst_port"`
	Protocol  string    `json:"protocol"`
	Flags     []string  `json:"flags,omitempty"`
	Length    int       `json:"length"`
	Layers    []string  `json:"layers,omitempty"`
}

// analyzeRequest carries a prompt plus the records to analyze, either
// inline or as a server-side capture path.
type analyzeRequest struct {
	Prompt   string          `json:"prompt"`
	PcapPath string          `json:"pcap_path,omitempty"`
	Records  []recordPayload `json:"records,omitempty"`
}

func (h *apiHandler) analyze(w http.ResponseWriter, r *http.Request) {
	req, records, ok := h.decodeAnalyze(w, r)
	if !ok {
		return
	}
	resp := h.orch.Query(r.Context(), records, req.Prompt)
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *apiHandler) analyzeLocal(w http.ResponseWriter, r *http.Request) {
	req, records, ok := h.decodeAnalyze(w, r)
	if !ok {
		return
	}
	resp := h.orch.LocalAnalyze(r.Context(), records, req.Prompt)
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *apiHandler) statistics(w http.ResponseWriter, r *http.Request) {
	_, records, ok := h.decodeAnalyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, triage.Statistics(records))
}

func (h *apiHandler) providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.orch.Providers())
}

func (h *apiHandler) suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.orch.SuggestedQueries())
}

func (h *apiHandler) history(w http.ResponseWriter, r *http.Request) {
	historian, ok := h.sink.(audit.Historian)
	if !ok {
		http.Error(w, "query history requires the clickhouse audit sink", http.StatusNotImplemented)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := historian.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", zap.Error(err))
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entries)
}

// decodeAnalyze parses the request body and loads its records. It writes
// the HTTP error itself and reports ok=false when the request is bad.
func (h *apiHandler) decodeAnalyze(w http.ResponseWriter, r *http.Request) (*analyzeRequest, []*model.Record, bool) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return nil, nil, false
	}
	if req.PcapPath == "" && len(req.Records) == 0 {
		http.Error(w, "either pcap_path or records is required", http.StatusBadRequest)
		return nil, nil, false
	}

	var records []*model.Record
	if req.PcapPath != "" {
		loaded, err := pcap.ReadAll(req.PcapPath, h.logger)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load capture: %v", err), http.StatusBadRequest)
			return nil, nil, false
		}
		records = loaded
	} else {
		records = make([]*model.Record, 0, len(req.Records))
		for i := range req.Records {
			records = append(records, req.Records[i].toModel())
		}
	}
	return &req, records, true
}

func (p *recordPayload) toModel() *model.Record {
	return &model.Record{
		Timestamp: p.Timestamp,
		SrcIP:     net.ParseIP(p.SrcIP),
		DstIP:     net.ParseIP(p.DstIP),
		SrcPort:   p.SrcPort,
		DstPort:   p.DstPort,
		Protocol:  strings.ToUpper(p.Protocol),
		Flags:     parseFlags(p.Flags),
		Length:    p.Length,
		Layers:    p.Layers,
	}
}

func parseFlags(names []string) model.TCPFlags {
	var f model.TCPFlags
	for _, name := range names {
		switch strings.ToUpper(name) {
		case "FIN":
			f |= model.FlagFIN
		case "SYN":
			f |= model.FlagSYN
		case "RST":
			f |= model.FlagRST
		case "PSH":
			f |= model.FlagPSH
		case "ACK":
			f |= model.FlagACK
		case "URG":
			f |= model.FlagURG
		}
	}
	return f
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
