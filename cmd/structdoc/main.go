// Package main provides the structdoc command line interface and API server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/structdoc/structdoc/api"
	"github.com/structdoc/structdoc/pkg/config"
	"github.com/structdoc/structdoc/pkg/logger"
	"github.com/structdoc/structdoc/pkg/parsers"
)

// Version information (set by build process)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Command line flags
var (
	configFile  = flag.String("config", "", "Path to configuration file")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile     = flag.String("log-file", "", "Log file path (default: stderr)")
	showVersion = flag.Bool("version", false, "Show version information")
	serveMode   = flag.Bool("serve", false, "Run the REST API server")
	strategy    = flag.String("strategy", "", "Parsing strategy (auto, pdf_text, universal, ocr, remote)")
	output      = flag.String("output", "text", "Output format for parse results (text, json, extracted)")
	concurrency = flag.Int("concurrency", 4, "Worker count for batch parsing")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("structdoc %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := initializeLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting structdoc", map[string]interface{}{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})

	integration, err := buildIntegration(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to build parser integration: %w", err)
	}

	if *serveMode {
		return runAPIServer(ctx, integration, cfg, appLogger)
	}
	return runCLIMode(ctx, integration, appLogger)
}

func loadConfig() (*config.FrameworkConfig, error) {
	cfg := config.NewFrameworkConfig()

	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Override with command line flags
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initializeLogger(cfg *config.FrameworkConfig) (logger.Logger, error) {
	if cfg.LogFile != "" {
		return logger.NewFileLogger(cfg.LogLevel, cfg.LogFile)
	}
	return logger.NewConsoleLogger(cfg.LogLevel), nil
}

// buildIntegration assembles the factory and integration from the loaded
// configuration, honoring a strategy override from the command line.
func buildIntegration(cfg *config.FrameworkConfig, appLogger logger.Logger) (*parsers.ParserIntegration, error) {
	var opts []parsers.FactoryOption
	if table := cfg.ExtensionTable(); table != nil {
		opts = append(opts, parsers.WithExtensionTable(table))
	}
	factory := parsers.NewDefaultFactory(appLogger, opts...)

	if cfg.Remote != nil && cfg.Remote.BaseURL != "" {
		remoteOpts := cfg.Remote.Options()
		err := factory.Register(func(pc *parsers.ParserConfiguration, l logger.Logger) parsers.DocumentParser {
			return parsers.NewRemoteParser(remoteOpts, pc, l)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register remote parser: %w", err)
		}
	}

	parserCfg := parsers.NewParserConfiguration()
	if cfg.Parser != nil {
		parserCfg = cfg.Parser.ParserConfiguration()
	}
	cfg.OCR.ApplyTo(parserCfg)
	if *strategy != "" {
		if !parsers.IsValidStrategy(parsers.ParsingStrategy(*strategy)) {
			return nil, fmt.Errorf("unknown strategy: %s", *strategy)
		}
		parserCfg.Strategy = parsers.ParsingStrategy(*strategy)
	}

	return parsers.NewParserIntegration(factory, parserCfg, appLogger), nil
}

func runAPIServer(ctx context.Context, integration *parsers.ParserIntegration, cfg *config.FrameworkConfig, appLogger logger.Logger) error {
	appLogger.Info("Starting API server mode")

	server := api.NewServer(integration, cfg, appLogger)
	return server.Start(ctx)
}

func runCLIMode(ctx context.Context, integration *parsers.ParserIntegration, appLogger logger.Logger) error {
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("no command specified, use --help for usage information")
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "parse":
		return executeParseCommand(ctx, integration, commandArgs)
	case "convert":
		return executeConvertCommand(ctx, integration, commandArgs)
	case "strategies":
		return executeStrategiesCommand(integration)
	case "extensions":
		return executeExtensionsCommand(integration)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func executeParseCommand(ctx context.Context, integration *parsers.ParserIntegration, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one file path required")
	}

	if len(args) == 1 {
		result := integration.ParseWithFramework(ctx, args[0])
		if result == nil {
			return fmt.Errorf("no parser available for %s", args[0])
		}
		return printResult(args[0], result, integration)
	}

	results := integration.ParseBatch(ctx, args, *concurrency)
	for _, path := range args {
		result, ok := results[path]
		if !ok {
			fmt.Printf("%s: no parser available\n", path)
			continue
		}
		if err := printResult(path, result, integration); err != nil {
			return err
		}
	}
	return nil
}

func printResult(path string, result *parsers.ParseResult, integration *parsers.ParserIntegration) error {
	switch *output {
	case "json":
		return printJSON(result.ToMap())
	case "extracted":
		content := integration.ConvertToExtractedContent(result)
		if content == nil {
			return fmt.Errorf("conversion produced no content for %s", path)
		}
		return printJSON(content)
	case "text":
		printSummary(path, result)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", *output)
	}
}

func printSummary(path string, result *parsers.ParseResult) {
	status := "ok"
	if !result.Success {
		status = "failed"
	}

	quality := "n/a"
	if result.Quality != nil {
		quality = fmt.Sprintf("%.2f", result.Quality.OverallScore)
	}

	fmt.Printf("%s [%s] strategy=%s elements=%d quality=%s\n",
		path, status, result.StrategyUsed, len(result.Elements), quality)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if result.Success && len(result.Elements) > 0 {
		fmt.Println()
		fmt.Println(result.PlainText())
	}
}

func executeConvertCommand(ctx context.Context, integration *parsers.ParserIntegration, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("file path required")
	}

	result := integration.ParseWithFramework(ctx, args[0])
	if result == nil {
		return fmt.Errorf("no parser available for %s", args[0])
	}

	content := integration.ConvertToExtractedContent(result)
	if content == nil {
		return fmt.Errorf("conversion produced no content for %s", args[0])
	}
	return printJSON(content)
}

func executeStrategiesCommand(integration *parsers.ParserIntegration) error {
	registered := integration.Factory().GetRegisteredParsers()
	if len(registered) == 0 {
		fmt.Println("No parsers registered")
		return nil
	}

	fmt.Println("Registered strategies:")
	for _, s := range registered {
		fmt.Printf("  %s\n", s)
	}
	return nil
}

func executeExtensionsCommand(integration *parsers.ParserIntegration) error {
	factory := integration.Factory()
	extensions := factory.GetSupportedExtensions()
	if len(extensions) == 0 {
		fmt.Println("No extensions supported")
		return nil
	}

	fmt.Println("Supported extensions:")
	for _, ext := range extensions {
		strategies := factory.GetStrategiesForExtension(ext)
		names := make([]string, 0, len(strategies))
		for _, s := range strategies {
			names = append(names, string(s))
		}
		fmt.Printf("  %s: %s\n", ext, strings.Join(names, ", "))
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
