package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goclaw/dispatch/config"
	"github.com/goclaw/dispatch/pkg/logger"
	"github.com/goclaw/dispatch/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName   = flag.String("app-name", "", "Override app name")
	adminPort = flag.Int("port", 0, "Override admin API port")
	logLevel  = flag.String("log-level", "", "Override log level")
	noDemo    = flag.Bool("no-demo", false, "Disable the demo signals")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("dispatchd %s\n", version.Get())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	logger.SetGlobal(log)
	defer log.Close()

	build := version.Get()
	log.Info("Starting dispatchd",
		"version", build.Version,
		"gitCommit", build.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	if err := a.run(ctx, *configPath); err != nil {
		log.Error("dispatchd stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("dispatchd stopped gracefully")
}

func buildOverrides() map[string]any {
	overrides := make(map[string]any)

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *adminPort != 0 {
		overrides["admin.port"] = *adminPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *noDemo {
		overrides["demo.enabled"] = false
	}

	return overrides
}

func printHelp() {
	fmt.Printf("dispatchd - in-process signal dispatcher with an admin API\n\n")
	fmt.Printf("Usage: dispatchd [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  dispatchd                                 # Run with default config\n")
	fmt.Printf("  dispatchd -config dispatchd.yaml          # Use specific config file\n")
	fmt.Printf("  dispatchd -port 9090 -log-level debug     # Override specific options\n")
	fmt.Printf("  DISPATCH_DEMO_ENABLED=false dispatchd     # Configure through the environment\n")
}
