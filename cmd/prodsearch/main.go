// Package main is the prodsearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"github.com/hyperjump/prodsearch/internal/catalog"
	"github.com/hyperjump/prodsearch/internal/cli"
	"github.com/hyperjump/prodsearch/internal/config"
	"github.com/hyperjump/prodsearch/internal/embedding"
	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/internal/search"
	"github.com/hyperjump/prodsearch/internal/server"
	"github.com/hyperjump/prodsearch/internal/storage"
	"github.com/hyperjump/prodsearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/prodsearch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// If neither exists the built-in defaults are returned with an empty resolved path.
// Returns the config and the path that was actually loaded.
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
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
	case "init":
		runInit()
	case "server":
		runServer()
	case "search":
		runSearch()
	case "products":
		runProducts()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("prodsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	reuse := fs.Bool("reuse", false, "serve the persisted collection instead of re-embedding the catalog")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := prepareEngine(context.Background(), components, cfg, *reuse); err != nil {
		logger.Fatal("Failed to load search engine", zap.Error(err))
	}

	srv := server.NewServer(components.Engine, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: prodsearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are the top-k nearest products by cosine similarity, keeping only those at or above --threshold.
  • --threshold -1 disables filtering and always returns top-k results.

Examples:
  prodsearch search wireless audio devices
  prodsearch search --top-k 5 --threshold 0.3 "running shoes"
  prodsearch search --server "" --output json coffee maker   # no server, read the collection directly
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchDefaultsFromConfig loads config at path and returns its default top-k and threshold.
// On load failure the built-in defaults are returned.
func searchDefaultsFromConfig(path string) (topK int, threshold float64) {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return cfg.Search.DefaultTopK, cfg.SearchThreshold()
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
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
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)
	defaultTopK, defaultThreshold := searchDefaultsFromConfig(configPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the collection directly)")
	topK := fs.Int("top-k", defaultTopK, "maximum number of results")
	threshold := fs.Float64("threshold", defaultThreshold, "minimum cosine similarity in [-1, 1] (unset: the engine's default for its embedding provider)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var explicitThreshold *float64
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			explicitThreshold = threshold
		}
	})
	searchQuery := buildQuery(queryStr, *topK, explicitThreshold)

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, searchQuery)
	} else {
		response, err = searchDirect(*configPathFlag, searchQuery)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// buildQuery leaves the threshold nil when none was given so the engine applies its own default.
func buildQuery(text string, topK int, threshold *float64) *models.SearchQuery {
	q := &models.SearchQuery{Query: text, TopK: topK}
	if threshold != nil {
		t := *threshold
		q.Threshold = &t
	}
	return q
}

func searchDirect(configPath string, query *models.SearchQuery) (*models.SearchResponse, error) {
	cfg, logger := setup(configPath, false)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	if err := prepareEngine(ctx, components, cfg, true); err != nil {
		return nil, err
	}
	return components.Engine.Query(ctx, query)
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

func runProducts() {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the collection directly)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	export := fs.String("export", "", "write the products to an .xlsx file instead of printing them")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var products []models.Product
	if *serverURL != "" {
		products, err = productsViaHTTP(*serverURL)
	} else {
		products, err = productsDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Products failed: %v\n", err)
		os.Exit(1)
	}

	if *export != "" {
		if err := catalog.SaveExcel(*export, products); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d products to %s\n", len(products), *export)
		return
	}
	if err := cli.WriteProducts(os.Stdout, products, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func productsDirect(configPath string) ([]models.Product, error) {
	cfg, logger := setup(configPath, false)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	if err := prepareEngine(ctx, components, cfg, true); err != nil {
		return nil, err
	}
	return components.Engine.Products(ctx)
}

func productsViaHTTP(serverURL string) ([]models.Product, error) {
	resp, err := http.Get(serverURL + "/api/v1/products")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Products []models.Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Products, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Engine         search.Stats           `json:"engine"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the collection directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	var err error
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "state:              %s\n", status.Engine.State)
	fmt.Fprintf(w, "collection:         %s\n", status.Engine.Collection)
	fmt.Fprintf(w, "records:            %d   # products in the collection\n", status.Engine.Records)
	if status.Engine.IndexType != "" {
		fmt.Fprintf(w, "index_type:         %s\n", status.Engine.IndexType)
	}
	fmt.Fprintf(w, "dimensions:         %d\n", status.Engine.Dimensions)
	fmt.Fprintf(w, "index_restored:     %t   # graph loaded from snapshot instead of rebuilt\n", status.Engine.IndexRestored)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range []string{"embedding_provider", "embedding_dimensions", "index_type", "default_top_k", "default_threshold", "database_path"} {
			if v, ok := status.Config[key]; ok {
				fmt.Fprintf(w, "%-20s%v\n", key+":", v)
			}
		}
	}
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, logger := setup(configPath, false)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	if err := components.Engine.Open(context.Background()); err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
		return nil, err
	}
	status := &statusResponse{
		Engine: components.Engine.Stats(),
		Config: map[string]interface{}{
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"index_type":           cfg.Index.Type,
			"default_top_k":        cfg.Search.DefaultTopK,
			"default_threshold":    cfg.SearchThreshold(),
			"database_path":        cfg.Storage.CollectionPath(),
		},
	}
	if diskBytes, err := storage.CollectionDiskUsage(cfg.Storage.CollectionPath()); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Engine   *search.Engine

	config *config.Config
	logger *zap.Logger
}

// Close shuts down the engine before the embedder and storage it uses.
// With storage.drop_on_close the database files are removed as well.
func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close(context.Background())
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.config != nil && c.config.Storage.DropOnClose {
		if err := storage.RemoveCollectionFiles(c.config.Storage.CollectionPath()); err != nil {
			utils.LoggerOrNop(c.logger).Warn("failed to remove collection files",
				zap.String("path", c.config.Storage.CollectionPath()),
				zap.Error(err))
		}
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.CollectionPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if active := embedder.Provider(); active != cfg.Embedding.Provider {
		// the default search threshold follows the provider actually embedding
		cfg.Embedding.Provider = active
		logger.Info("using fallback embedding provider",
			zap.String("provider", active),
			zap.Float64("default_threshold", cfg.SearchThreshold()))
	}
	if embedder.Dimensions() != cfg.Embedding.Dimensions {
		logger.Warn("embedder dimensions differ from config",
			zap.Int("configured", cfg.Embedding.Dimensions),
			zap.Int("actual", embedder.Dimensions()))
	}

	engine := search.NewEngine(embedder, store, cfg, search.WithLogger(logger))
	return &Components{
		Storage:  store,
		Embedder: embedder,
		Engine:   engine,
		config:   cfg,
		logger:   logger,
	}, nil
}

// prepareEngine makes the engine Ready. With reuse it serves the persisted collection when one
// exists; otherwise (or when none is persisted) it embeds the configured catalog.
func prepareEngine(ctx context.Context, c *Components, cfg *config.Config, reuse bool) error {
	if reuse {
		err := c.Engine.Open(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrCollectionNotFound) {
			return err
		}
	}
	products, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	return c.Engine.Load(ctx, products)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file to create")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *configPath)
}

// writeDefaultConfig saves the built-in defaults to path, refusing to replace an existing
// file unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func printUsage() {
	fmt.Println(`prodsearch - Semantic product search

Usage:
  prodsearch init [flags]             Write a default config file
  prodsearch server [flags]           Load the catalog and start the HTTP server
  prodsearch search [flags] <query>   Search products
  prodsearch products [flags]         List (or export) indexed products
  prodsearch status [flags]           Show engine/collection status
  prodsearch version                  Show version
  prodsearch help                     Show this help

Init Flags:
  --config string    Config file to create (default: /usr/local/etc/prodsearch/config.yaml)
  --force            Overwrite an existing config file

Server Flags:
  --config string    Config file path (default: /usr/local/etc/prodsearch/config.yaml)
  --debug            Enable debug logging
  --reuse            Serve the persisted collection instead of re-embedding the catalog

Search Flags:
  --config string      Config file path (direct mode; also supplies default top-k and threshold)
  --server string      Server URL (default: http://localhost:8080). Use --server "" to read the collection directly.
  --top-k int          Maximum number of results (default from config, or 3)
  --threshold float    Minimum cosine similarity (default from config, else 0.5 for onnx and 0.2 for hash)
  --output string      Output format: text, compact, or json (default: text)

Products Flags:
  --config, --server, --output as above
  --export string      Write products to an .xlsx file

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --output string    Output format: text or json (default: text)

Examples:
  prodsearch server
  prodsearch search "wireless audio devices"
  prodsearch search --top-k 5 --threshold -1 headphones
  prodsearch products --export catalog.xlsx
  prodsearch status --output json`)
}
