// Package main is the CropSage CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/chunk"
	"github.com/cropsage/cropsage/internal/compliance"
	"github.com/cropsage/cropsage/internal/config"
	"github.com/cropsage/cropsage/internal/embedding"
	"github.com/cropsage/cropsage/internal/export"
	"github.com/cropsage/cropsage/internal/ingest"
	"github.com/cropsage/cropsage/internal/labreport"
	"github.com/cropsage/cropsage/internal/lexical"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/pipeline"
	"github.com/cropsage/cropsage/internal/ranking"
	"github.com/cropsage/cropsage/internal/retrieval"
	"github.com/cropsage/cropsage/internal/server"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/synthesis"
	"github.com/cropsage/cropsage/internal/vector"
	"github.com/cropsage/cropsage/internal/watcher"
	"github.com/cropsage/cropsage/internal/worker"
	"github.com/cropsage/cropsage/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/cropsage/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "cropsage server" from the project dir uses the
// project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "ingest":
		runIngest()
	case "watch":
		runWatch()
	case "worker":
		runWorker()
	case "export-training":
		runExportTraining()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("cropsage version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components bundles everything a subcommand may need, built once from
// config.
type Components struct {
	Store       *storage.SQLiteStore
	Embedder    embedding.Embedder
	VectorIndex *vector.MemoryIndex
	Lexical     lexical.Index
	Ingestor    *ingest.Ingestor
	Pipeline    *pipeline.Pipeline
	Evaluator   *compliance.Evaluator
	Exporter    *export.Exporter
	Worker      *worker.Worker
}

func (c *Components) Close() {
	if c.Lexical != nil {
		_ = c.Lexical.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using mock embeddings",
			zap.String("model_path", cfg.Embedding.ModelPath), zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	lexIndex, err := lexical.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lexical index: %w", err)
	}

	chunker := chunk.NewChunker(
		cfg.Ingest.MinChunkTokens,
		cfg.Ingest.MaxChunkTokens,
		cfg.Ingest.OverlapTokens,
	)
	ingestor := ingest.New(store, chunker, embedder, vectorIndex, lexIndex, logger)
	retriever := retrieval.NewRetriever(store, embedder, vectorIndex, lexIndex, logger)

	var generator synthesis.Generator
	if cfg.Synthesis.Enabled {
		claude, err := synthesis.NewClaudeGenerator(
			cfg.Synthesis.APIKey,
			cfg.Synthesis.Model,
			cfg.Synthesis.MaxTokens,
			cfg.Synthesis.Temperature,
			logger,
		)
		if err != nil {
			logger.Warn("generative synthesis unavailable, using heuristic only", zap.Error(err))
		} else {
			generator = claude
		}
	}
	timeout, err := time.ParseDuration(cfg.Synthesis.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}
	synthesizer := synthesis.NewSynthesizer(generator, timeout, logger)

	pipe := pipeline.New(store, retriever, ranking.NewRanker(nil), synthesizer, pipeline.Options{
		ContextTopK: cfg.Retrieval.ContextTopK,
		MMRLambda:   cfg.Retrieval.MMRLambda,
	}, logger)

	evaluator := compliance.NewEvaluator(compliance.Thresholds{
		MaxSingleRate:   cfg.Compliance.MaxSingleRate,
		MaxSeasonalDose: cfg.Compliance.MaxSeasonalDose,
		RuleVersion:     cfg.Compliance.RuleVersion,
	}, logger)

	pollInterval, err := time.ParseDuration(cfg.Worker.PollInterval)
	if err != nil {
		pollInterval = 2 * time.Second
	}
	wrk := worker.New(store, ingestor, pipe, worker.Config{
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: pollInterval,
		MaxAttempts:  cfg.Worker.MaxAttempts,
	}, logger)

	return &Components{
		Store:       store,
		Embedder:    embedder,
		VectorIndex: vectorIndex,
		Lexical:     lexIndex,
		Ingestor:    ingestor,
		Pipeline:    pipe,
		Evaluator:   evaluator,
		Exporter:    export.NewExporter(store, logger),
		Worker:      wrk,
	}, nil
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded", zap.String("config_path", resolvedPath))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

// startWatcher wires directory changes into the ingest job queue. Deletion
// removes the source derived from the path.
func startWatcher(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*watcher.Watcher, error) {
	if len(cfg.Ingest.WatchDirs) == 0 {
		return nil, nil
	}
	watchSvc := watcher.New(
		cfg.Ingest.WatchDirs,
		cfg.Ingest.Extensions,
		func(path string) {
			payload, err := json.Marshal(worker.IngestPayload{Path: path})
			if err != nil {
				return
			}
			job := &storage.Job{
				ID:      uuid.New().String(),
				Kind:    storage.JobIngestFile,
				Payload: string(payload),
			}
			if err := c.Store.EnqueueJob(context.Background(), job); err != nil {
				logger.Warn("watch enqueue failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := c.Ingestor.RemoveSource(context.Background(), ingest.FileSourceID(path)); err != nil {
				logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		logger,
	)
	if err := watchSvc.Start(ctx); err != nil {
		return nil, err
	}
	watchSvc.SyncExistingFiles()
	return watchSvc, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if _, err := startWatcher(bgCtx, cfg, components, logger); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go components.Worker.Run(bgCtx)

	srv := server.NewServer(
		components.Pipeline,
		components.Ingestor,
		components.Store,
		components.Evaluator,
		components.Exporter,
		components.VectorIndex,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	bgCancel()
	saveVectorIndex(cfg, components, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func saveVectorIndex(cfg *config.Config, c *Components, logger *zap.Logger) {
	if cfg.Storage.VectorIndexPath == "" || c.VectorIndex == nil {
		return
	}
	if err := c.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("vector index save failed",
			zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
	}
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	inputID := fs.String("input", "", "existing observation id (skips the description flags)")
	description := fs.String("description", "", "symptom description")
	crop := fs.String("crop", "", "crop name")
	location := fs.String("location", "", "field location")
	season := fs.String("season", "", "season")
	growthStage := fs.String("growth-stage", "", "growth stage")
	labFile := fs.String("lab", "", "lab report file (.xlsx or .csv) attached to the observation")
	limit := fs.Int("limit", 0, "retrieval candidate limit")
	diversify := fs.Bool("diversify", true, "diversify supporting passages")
	_ = fs.Parse(os.Args[2:])

	if *inputID == "" && *description == "" {
		fmt.Fprintln(os.Stderr, "Either --input or --description is required")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	id := *inputID
	if id == "" {
		snap := &models.InputSnapshot{
			ID:          uuid.New().String(),
			Type:        models.ObservationPhoto,
			Crop:        *crop,
			Location:    *location,
			Season:      *season,
			GrowthStage: *growthStage,
			Description: *description,
		}
		if *labFile != "" {
			content, err := os.ReadFile(*labFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read lab report: %v\n", err)
				os.Exit(1)
			}
			labData, err := labreport.ParseFile(*labFile, content)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to parse lab report: %v\n", err)
				os.Exit(1)
			}
			snap.LabData = labData
			snap.Type = models.ObservationHybrid
		}
		if err := components.Store.CreateSnapshot(ctx, snap); err != nil {
			logger.Fatal("Failed to store observation", zap.Error(err))
		}
		id = snap.ID
	}

	result, err := components.Pipeline.Assemble(ctx, &models.RecommendationRequest{
		InputID:   id,
		Limit:     *limit,
		Diversify: *diversify,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommendation failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "source title (defaults to file name)")
	sourceType := fs.String("type", "", "source type: government, university_extension, research_paper, manufacturer, retailer, other")
	boost := fs.Float64("boost", 0, "manual relevance boost in [-0.2, 0.2]")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cropsage ingest [flags] <file>")
		os.Exit(1)
	}

	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	src, err := components.Ingestor.IngestFile(context.Background(), fs.Arg(0), ingest.Options{
		Title:      *title,
		SourceType: models.SourceType(*sourceType),
		Boost:      *boost,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	saveVectorIndex(cfg, components, logger)
	fmt.Printf("Ingested %s as source %s (%s)\n", fs.Arg(0), src.ID, src.Status)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	if len(cfg.Ingest.WatchDirs) == 0 {
		fmt.Fprintln(os.Stderr, "No watch_dirs configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := startWatcher(ctx, cfg, components, logger); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go components.Worker.Run(ctx)

	logger.Info("watching reference directories", zap.Strings("dirs", cfg.Ingest.WatchDirs))
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	cancel()
	saveVectorIndex(cfg, components, logger)
}

func runWorker() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go components.Worker.Run(ctx)

	logger.Info("worker running")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	cancel()
	saveVectorIndex(cfg, components, logger)
}

func runExportTraining() {
	fs := flag.NewFlagSet("export-training", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "", "output file (default stdout)")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	rows, err := components.Exporter.WriteCSV(context.Background(), w)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		fmt.Printf("Wrote %d rows to %s\n", rows, *out)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	passages, err := components.Store.CountPassages(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Passages:          %d\n", passages)
	fmt.Printf("Vector index size: %d\n", components.VectorIndex.Size())
	if count, err := components.Lexical.Count(); err == nil {
		fmt.Printf("Lexical index:     %d\n", count)
	}
}

func printUsage() {
	fmt.Println(`cropsage - Agronomic diagnosis and recommendation engine

Usage:
  cropsage server [flags]              Start the HTTP server (with watcher and worker)
  cropsage recommend [flags]           Run one recommendation from the command line
  cropsage ingest [flags] <file>       Ingest a reference document
  cropsage watch [flags]               Watch reference directories and ingest changes
  cropsage worker [flags]              Run the ingest job worker
  cropsage export-training [flags]     Export audit feedback as ranker training CSV
  cropsage status [flags]              Show storage and index counts
  cropsage version                     Show version
  cropsage help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/cropsage/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string        Config file path
  --input string         Existing observation id
  --description string   Symptom description (creates a new observation)
  --crop string          Crop name
  --location string      Field location
  --season string        Season
  --growth-stage string  Growth stage
  --lab string           Lab report file (.xlsx or .csv)
  --limit int            Retrieval candidate limit
  --diversify            Diversify supporting passages (default: true)

Ingest Flags:
  --config string    Config file path
  --title string     Source title
  --type string      Source type (government, university_extension, ...)
  --boost float      Manual relevance boost in [-0.2, 0.2]

Export Flags:
  --config string    Config file path
  --out string       Output file (default stdout)

Examples:
  cropsage server
  cropsage recommend --crop corn --description "interveinal chlorosis on lower leaves"
  cropsage ingest --type university_extension --title "Corn Deficiency Guide" guide.pdf
  cropsage export-training --out training.csv`)
}
