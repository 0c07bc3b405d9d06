// Package main is the manabi CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/manabi/internal/cli"
	"github.com/hyperjump/manabi/internal/cluster"
	"github.com/hyperjump/manabi/internal/concepts"
	"github.com/hyperjump/manabi/internal/config"
	"github.com/hyperjump/manabi/internal/engine"
	"github.com/hyperjump/manabi/internal/extract"
	"github.com/hyperjump/manabi/internal/ingest"
	"github.com/hyperjump/manabi/internal/keyword"
	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/internal/search"
	"github.com/hyperjump/manabi/internal/server"
	"github.com/hyperjump/manabi/internal/storage"
	"github.com/hyperjump/manabi/internal/watcher"
	"github.com/hyperjump/manabi/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/manabi/config.yaml"

// loadConfig loads config from path. When path is the default, a
// config.yaml in the current directory takes precedence so running
// "manabi server" from the project dir picks up the project's config.
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
	switch os.Args[1] {
	case "server":
		runServer()
	case "add":
		runAdd()
	case "search":
		runSearch()
	case "clusters":
		runClusters()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("manabi version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	KeywordIndex keyword.KeywordIndex
	Engine       *engine.Engine
	Ingestor     *ingest.Ingestor
	Search       *search.Service
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires storage, the keyword index, the in-memory
// engine, and the services on top, then rehydrates the engine from the
// durable state.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithAssignerOptions(
			cluster.WithThreshold(cfg.Engine.SimilarityThreshold),
			cluster.WithNameBonus(cfg.Engine.ClusterNameBonus),
			cluster.WithMaxPrimaryConcepts(cfg.Engine.MaxPrimaryConcepts),
		),
	)

	extractor := concepts.NewKeywordExtractor(cfg.Engine.ConceptCount)
	ingestor := ingest.NewIngestor(store, eng, extractor, keywordIndex, logger)
	svc := search.NewService(store, eng, keywordIndex, &cfg.Search)

	if err := ingestor.Rehydrate(context.Background()); err != nil {
		_ = keywordIndex.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to rehydrate engine: %w", err)
	}
	logger.Info("engine rehydrated",
		zap.Int("documents", eng.DocumentCount()),
		zap.Int("clusters", eng.ClusterCount()))

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Engine:       eng,
		Ingestor:     ingestor,
		Search:       svc,
	}, nil
}

// openComponents loads config, builds a logger, and wires components.
// Shared by the direct-storage commands.
func openComponents(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var inbox *watcher.Watcher
	if cfg.Inbox.Directory != "" {
		ing := components.Ingestor
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Inbox.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		inbox = watcher.New(cfg.Inbox.Directory, cfg.Inbox.Extensions, func(path string) {
			result, err := ing.IngestFile(context.Background(), path)
			if err != nil {
				logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("inbox file ingested",
				zap.String("path", path),
				zap.Int64("doc_id", result.DocID),
				zap.Int64("cluster_id", result.ClusterID))
		}, watchOpts...)
		if err := inbox.Start(watchCtx); err != nil {
			logger.Warn("inbox watcher disabled", zap.String("dir", cfg.Inbox.Directory), zap.Error(err))
			inbox = nil
		}
	}

	srv := server.NewServer(
		components.Search,
		components.Ingestor,
		components.Engine,
		components.Storage,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if inbox != nil {
		inbox.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "document title (default: derived from file name or content)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: manabi add [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, logger, components := openComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var result *models.IngestResult
	var err error
	if *title != "" {
		var text, sourceType string
		text, sourceType, err = extract.NewExtractor().Extract(path)
		if err == nil {
			result, err = components.Ingestor.Ingest(ctx, &models.DocumentInput{
				Title:      *title,
				Content:    text,
				SourceType: sourceType,
			})
		}
	} else {
		result, err = components.Ingestor.IngestFile(ctx, path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngestResult(os.Stdout, result, cli.ParseOutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags (and their values) that appear after the
// query to the front so flag.Parse() sees them. The flag package stops
// at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	offset := fs.Int("offset", 0, "result offset for pagination")
	minScore := fs.Float64("min-score", 0, "minimum fused score")
	clusterID := fs.Int64("cluster", -1, "restrict results to one cluster (-1 = no filter)")
	kwWeight := fs.Float64("keyword-weight", 0, "keyword score weight (0 = config default)")
	semWeight := fs.Float64("semantic-weight", 0, "semantic score weight (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: manabi search [flags] <query>")
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Query:          queryStr,
		Limit:          *limit,
		Offset:         *offset,
		MinScore:       *minScore,
		KeywordWeight:  *kwWeight,
		SemanticWeight: *semWeight,
	}
	if *clusterID >= 0 {
		searchQuery.ClusterID = clusterID
	}
	format := cli.ParseOutputFormat(*outputFormat)

	if *serverURL != "" {
		// The HTTP API avoids a Bleve/SQLite lock conflict with a
		// running server.
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_, logger, components := openComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	response, err := components.Search.Search(context.Background(), searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runClusters() {
	fs := flag.NewFlagSet("clusters", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := cli.ParseOutputFormat(*outputFormat)

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/clusters")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Clusters []models.Cluster `json:"clusters"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteClusters(os.Stdout, out.Clusters, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_, logger, components := openComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	if err := cli.WriteClusters(os.Stdout, components.Engine.ListClusters(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: manabi delete [flags] <document-id>")
		os.Exit(1)
	}
	var docID int64
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &docID); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid document id %q\n", fs.Arg(0))
		os.Exit(1)
	}

	_, logger, components := openComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	removed, err := components.Ingestor.Delete(context.Background(), docID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if !removed {
		fmt.Printf("Document %d was not indexed\n", docID)
		return
	}
	fmt.Printf("Document deleted: %d\n", docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := cli.ParseOutputFormat(*outputFormat)

	var status cli.Status
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components := openComponents(*configPath)
		defer logger.Sync()
		defer components.Close()

		ctx := context.Background()
		docCount, err := components.Storage.CountDocuments(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		clusterCount, err := components.Storage.CountClusters(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count clusters failed: %v\n", err)
			os.Exit(1)
		}
		status = cli.Status{Documents: docCount, Clusters: clusterCount}
	}

	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`manabi - personal knowledge base with semantic clustering

Usage:
  manabi server [flags]           Start the HTTP server
  manabi add [flags] <file>       Ingest a document from a file
  manabi search [flags] <query>   Search documents
  manabi clusters [flags]         List topic clusters
  manabi delete [flags] <id>      Delete a document
  manabi status [flags]           Show corpus status
  manabi version                  Show version
  manabi help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/manabi/config.yaml)
  --debug            Enable debug logging (inbox events, ingest steps, etc.)

Search Flags:
  --server string            Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int                Number of results (default from config)
  --offset int               Result offset for pagination
  --min-score float          Minimum fused score
  --cluster int              Restrict results to one cluster
  --keyword-weight float     Keyword score weight
  --semantic-weight float    Semantic score weight
  --output string            Output format: text or json (default: text)

Examples:
  manabi server
  manabi add notes/kubernetes.md
  manabi search container orchestration
  manabi search --cluster 2 --limit 20 deployment
  manabi clusters
  manabi status --output json
  manabi delete 42`)
}
