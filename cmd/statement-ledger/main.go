package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"

	"github.com/zombor/statement-ledger/internal/ledger"
	"github.com/zombor/statement-ledger/internal/scanning"
	"github.com/zombor/statement-ledger/internal/statement"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; flags and the environment still apply
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("statement-ledger")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		cacheDB     = fs.StringLong("cache-db", "", "BoltDB file for session results (in memory when empty)")
		tempDir     = fs.StringLong("temp-dir", "", "Directory for staged uploads (system temp dir when empty)")
		provider    = fs.StringLong("provider", scanning.ProviderOpenAI, "Extractor: 'openai', 'gemini' or 'ollama'")
		openAIKey   = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openAIModel = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		openAIURL   = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		maxTokens   = fs.IntLong("max-tokens", 1200, "Maximum tokens per model response")
		timeoutSecs = fs.IntLong("timeout-seconds", 120, "Timeout for a single model call")
		dpi         = fs.IntLong("dpi", scanning.DefaultDPI, "Resolution for rendering scanned pages")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		input       = fs.StringLong("input", "", "Convert this statement once and exit instead of serving")
		output      = fs.StringLong("output", "qbo_upload.csv", "Output file for --input (.csv or .xlsx, '-' for stdout)")
		_           = fs.StringLong("config", "", "YAML config file (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("STATEMENT_LEDGER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := scanning.Config{
		Provider:    *provider,
		GeminiKey:   firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
		GeminiModel: *geminiModel,
		OllamaURL:   *ollamaURL,
		OllamaModel: *ollamaModel,
		OpenAIKey:   firstNonEmpty(*openAIKey, os.Getenv("OPENAI_API_KEY")),
		OpenAIModel: *openAIModel,
		OpenAIURL:   *openAIURL,
		MaxTokens:   *maxTokens,
		Timeout:     time.Duration(*timeoutSecs) * time.Second,
	}

	slog.Info("Initializing extractor...", "provider", cfg.Provider)
	extractor, err := scanning.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	staging, err := statement.NewTempStaging(*tempDir)
	if err != nil {
		slog.Error("Failed to initialize staging", "error", err)
		os.Exit(1)
	}

	cache, err := openCache(*cacheDB)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	service := statement.NewService(extractor, cache, staging, *dpi)

	if *input != "" {
		if err := convert(service, *input, *output); err != nil {
			slog.Error("Conversion failed", "input", *input, "error", err)
			os.Exit(1)
		}
		return
	}

	basicAuth := statement.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := statement.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

func openCache(path string) (statement.Cache, error) {
	if path == "" {
		slog.Info("Using in-memory session cache")
		return statement.NewMemoryCache(), nil
	}
	slog.Info("Opening session cache", "path", path)
	return statement.NewBoltCache(path)
}

// convert runs a single statement through the service and writes the export
func convert(service *statement.Service, input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	upload := statement.Upload{
		Name:        filepath.Base(input),
		Size:        int64(len(data)),
		ContentType: statement.ContentTypeFor(input, "", data),
		Data:        data,
	}
	result, err := service.Process(ctx, "cli", upload)
	if err != nil {
		return err
	}
	if result.Warning != "" {
		slog.Warn(result.Warning)
	}

	write := ledger.WriteCSV
	if strings.EqualFold(filepath.Ext(output), ".xlsx") {
		write = ledger.WriteXLSX
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := write(w, result.Entry.Rows); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	slog.Info("Wrote transactions",
		"output", output,
		"rows", result.Summary.Count,
		"credits", result.Summary.Credits.StringFixed(2),
		"debits", result.Summary.Debits.StringFixed(2),
	)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
