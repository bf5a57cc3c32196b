package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yashubustudio/papersift/internal/report"
	"yashubustudio/papersift/internal/tui"
	"yashubustudio/papersift/papersift"
	"yashubustudio/papersift/selection"
)

type cliOptions struct {
	configPath      string
	inputPath       string
	outputPath      string
	outputDir       string
	referencePath   string
	threshold       string
	thresholdMethod string
	model           string
	provider        string
	batchSize       int
	parquetPath     string
	parseOpts       papersift.ParseOptions
	stats           bool
	visualize       bool
	tune            bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		log.Fatalf("papersift: %v", err)
	}
	if err := run(opts); err != nil {
		log.Fatalf("papersift: %v", err)
	}
}

func parseFlags() (cliOptions, error) {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", "", "Path to config.json or config.toml (default: ./config.json)")
	flag.StringVar(&opts.inputPath, "input", "", "CSV/TSV export of the paper library")
	flag.StringVar(&opts.outputPath, "output", "", "CSV file to write selected papers (default uses --output-dir/selected_*.csv)")
	flag.StringVar(&opts.outputDir, "output-dir", "output", "Directory where selected CSVs are written when --output is omitted")
	flag.StringVar(&opts.referencePath, "reference", "config/reference.txt", "Text file containing the reference description")
	flag.StringVar(&opts.threshold, "threshold", "", "Fixed similarity cutoff; overrides --threshold-method")
	flag.StringVar(&opts.thresholdMethod, "threshold-method", "", "Strategy name: auto, lenient, median, top25, top10, topN, auto:k=X, fixed:V")
	flag.StringVar(&opts.model, "model", "", "Embedding model id (HuggingFace repo or OpenAI model)")
	flag.StringVar(&opts.provider, "provider", "", "Embedding provider: onnx, openai or hashing")
	flag.IntVar(&opts.batchSize, "batch-size", 0, "Papers embedded per batch")
	flag.StringVar(&opts.parquetPath, "scores-parquet", "", "Also write every score to this Parquet file")
	flag.StringVar(&opts.parseOpts.KeyColumn, "key-column", "", "Column name or #index for the paper key")
	flag.StringVar(&opts.parseOpts.TitleColumn, "title-column", "", "Column name or #index for the title")
	flag.StringVar(&opts.parseOpts.AbstractColumn, "abstract-column", "", "Column name or #index for the abstract")
	flag.BoolVar(&opts.stats, "stats", false, "Print similarity statistics")
	flag.BoolVar(&opts.visualize, "visualize", false, "Print a histogram of similarity scores")
	flag.BoolVar(&opts.tune, "tune", false, "Pick the threshold interactively before writing output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --input FILE [--reference FILE] [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	opts.configPath = strings.TrimSpace(opts.configPath)
	opts.inputPath = strings.TrimSpace(opts.inputPath)
	opts.outputPath = strings.TrimSpace(opts.outputPath)
	opts.outputDir = strings.TrimSpace(opts.outputDir)
	opts.referencePath = strings.TrimSpace(opts.referencePath)
	opts.model = strings.TrimSpace(opts.model)
	opts.provider = strings.TrimSpace(opts.provider)
	opts.parquetPath = strings.TrimSpace(opts.parquetPath)

	if opts.inputPath == "" {
		flag.Usage()
		return opts, errors.New("missing required --input file")
	}
	return opts, nil
}

func applyOverrides(cfg *papersift.Config, opts cliOptions) {
	if opts.provider != "" {
		cfg.Embedder.Provider = opts.provider
	}
	if opts.model != "" {
		if cfg.Embedder.Provider == papersift.ProviderOpenAI {
			cfg.Embedder.OpenAI.Model = opts.model
		} else if cfg.Embedder.ModelID != opts.model {
			cfg.Embedder.ModelID = opts.model
			cfg.Embedder.ModelPath = ""
			cfg.Embedder.TokenizerPath = ""
		}
	}
	if opts.batchSize > 0 {
		cfg.BatchSize = opts.batchSize
	}
	if strings.TrimSpace(opts.thresholdMethod) != "" {
		cfg.Threshold.Method = opts.thresholdMethod
		cfg.Threshold.Value = nil
	}
}

func run(opts cliOptions) error {
	cfg, err := papersift.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	spec, err := cfg.Threshold.ThresholdSpec()
	if err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	if strings.TrimSpace(opts.threshold) != "" {
		if spec, err = papersift.ResolveThresholdSpec("", opts.threshold); err != nil {
			return fmt.Errorf("threshold: %w", err)
		}
	}

	reference, err := papersift.LoadReferenceText(opts.referencePath)
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}

	parseOpts := opts.parseOpts
	parseOpts.Candidates = cfg.Columns
	parseOpts.Separator = cfg.Separator
	lib, err := papersift.ReadLibrary(opts.inputPath, parseOpts)
	if err != nil {
		return fmt.Errorf("read library: %w", err)
	}
	rep, err := papersift.ValidateLibrary(lib)
	if err != nil {
		return fmt.Errorf("validate library: %w", err)
	}
	fmt.Printf("Loaded %d papers (title: %s, abstract: %s)\n", rep.Total, lib.TitleColumn, orNone(lib.AbstractColumn))
	for _, w := range rep.Warnings() {
		fmt.Printf("  warning: %s\n", w)
	}

	embedder, err := papersift.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)
	service, err := papersift.NewService(embedder, cfg, logger)
	if err != nil {
		embedder.Close()
		return fmt.Errorf("init service: %w", err)
	}
	defer service.Close()

	ctx := context.Background()
	enc, err := service.Encode(ctx, reference, lib.Papers, progressPrinter())
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if opts.tune {
		chosen, ok, err := tui.Run(enc.Candidates, enc.Scores, spec)
		if err != nil {
			return fmt.Errorf("tuner: %w", err)
		}
		if !ok {
			return errors.New("cancelled")
		}
		spec = chosen
	}

	res, err := enc.Select(spec)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}

	format := report.New()
	if opts.stats {
		fmt.Println(format.Statistics(res.Stats, spec.String()))
	}
	if opts.visualize {
		fmt.Println(format.Histogram(enc.Scores, cfg.Web.HistogramBin, res.Cutoff))
	}

	outputPath, err := resolveOutputPath(opts.outputPath, opts.outputDir)
	if err != nil {
		return err
	}
	if err := papersift.SaveSelectedCSV(outputPath, lib, res); err != nil {
		return err
	}
	fmt.Printf("Selected %d of %d papers (%s, cutoff %.4f); saved to %s\n",
		len(res.Selected), lib.Len(), spec, res.Cutoff, outputPath)

	if opts.parquetPath != "" {
		if err := papersift.WriteScoresParquet(opts.parquetPath, lib, res); err != nil {
			return err
		}
		fmt.Printf("Scores written to %s\n", opts.parquetPath)
	}

	printSummary(format, lib, res)
	return nil
}

func progressPrinter() papersift.ProgressFunc {
	last := -1
	return func(done, total int) {
		pct := done * 100 / max(total, 1)
		if pct/10 != last/10 || done == total {
			last = pct
			fmt.Printf("  embedded %d/%d (%d%%)\n", done, total, pct)
		}
	}
}

func resolveOutputPath(path, dir string) (string, error) {
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		return absPath, nil
	}
	if dir == "" {
		dir = "output"
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	filename := fmt.Sprintf("selected_%s.csv", time.Now().Format("20060102150405"))
	return filepath.Join(absDir, filename), nil
}

func printSummary(format *report.Formatter, lib *papersift.Library, res selection.Result) {
	fmt.Println()
	fmt.Println("==== Top selected papers ====")
	fmt.Println(format.TopPapers(res, func(i int) string { return lib.Papers[i].Title }, 10))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
