// ABOUTME: Command-line runner for evidence gate calibration
// ABOUTME: Sweeps top_k over labelled cases against the local index and writes JSON results

package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/harper/policy-rag/benchmarks/calibration"
	"github.com/harper/policy-rag/internal/config"
	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/logging"
	"github.com/harper/policy-rag/internal/storage/sqlite"
)

func main() {
	casesPath := flag.String("cases", "calibration_cases.json", "Path to the JSON calibration cases")
	topKs := flag.String("top-k", "4,8,12,16", "Comma-separated top_k values to sweep")
	outputPath := flag.String("output", "calibration_results.json", "Output path for JSON results")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	_ = godotenv.Load()
	logger := logging.New(os.Stderr, *verbose, false)

	if err := run(*casesPath, *topKs, *outputPath, *verbose); err != nil {
		logger.Error("calibration failed", "err", err)
		os.Exit(1)
	}
}

func run(casesPath, topKList, outputPath string, verbose bool) error {
	ks, err := parseTopKs(topKList)
	if err != nil {
		return err
	}
	cases, err := calibration.LoadCases(casesPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sqlite.Open(filepath.Join(cfg.DataDir, sqlite.DBFileName))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	emb, err := llm.NewOpenAIEmbedder(cfg.ClientConfig())
	if err != nil {
		return err
	}
	retriever := core.NewRetriever(emb, sqlite.NewIndex(db, cfg.EmbeddingModel))

	fmt.Println("========================================")
	fmt.Println("Evidence Gate Calibration")
	fmt.Println("========================================")
	fmt.Printf("Cases: %d  top_k: %v\n\n", len(cases), ks)

	runner := calibration.NewRunner(retriever, cfg.GateThresholds(), logging.New(os.Stderr, verbose, false))
	report, err := runner.Run(context.Background(), cases, ks)
	if err != nil {
		return err
	}

	for _, r := range report.Results {
		fmt.Printf("top_k=%d\n", r.TopK)
		fmt.Printf("  Answerable accepted:   %s\n", pct(r.AnswerableAcceptRate))
		fmt.Printf("  Unanswerable accepted: %s\n", pct(r.UnanswerableAcceptRate))
		fmt.Printf("  Context recall:        %s\n", pct(r.ContextRecall))
		fmt.Printf("  Mean top1/median/gap:  %s / %s / %s\n\n", num(r.MeanTop1), num(r.MeanMedian), num(r.MeanGap))
	}

	if err := calibration.ExportResults(report, outputPath); err != nil {
		return err
	}
	fmt.Printf("✓ Results exported to: %s (run %s)\n", outputPath, report.RunID)
	return nil
}

func parseTopKs(s string) ([]int, error) {
	var ks []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil || k < 1 {
			return nil, fmt.Errorf("invalid top_k value %q", part)
		}
		ks = append(ks, k)
	}
	if len(ks) == 0 {
		return nil, fmt.Errorf("no top_k values given")
	}
	return ks, nil
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}
