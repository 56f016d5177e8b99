// Command vidsift finds near-duplicate videos by perceptual hashing.
//
// Usage:
//
//	vidsift scan [-config file] <path>...        find duplicate groups
//	vidsift unique [-config file] <path>...      list videos with no duplicate
//	vidsift with-refs [-config file] -refs <dir> <path>...
//	                                             match candidates against references
//	vidsift serve [-config file]                 run the review API
//	vidsift purge-cache [-config file]           drop the fingerprint cache
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"vidsift/internal/api"
	"vidsift/internal/cache"
	"vidsift/internal/config"
	"vidsift/internal/core"
	"vidsift/internal/engine"
	"vidsift/internal/frames"
	"vidsift/internal/logging"
	"vidsift/internal/matching"
	"vidsift/pkg/ffmpeg"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("VIDSIFT_CONFIG"), "path to config file")
	refDir := fs.String("refs", "", "reference directory (with-refs only)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidsift: load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Environment, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidsift: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svc, err := buildService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to assemble engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "scan":
		runScan(ctx, svc, rootsFrom(fs.Args(), cfg), logger, printGroups)
	case "unique":
		runScan(ctx, svc, rootsFrom(fs.Args(), cfg), logger, printUnique)
	case "with-refs":
		if *refDir == "" {
			fmt.Fprintln(os.Stderr, "vidsift: with-refs requires -refs")
			os.Exit(2)
		}
		runWithRefs(ctx, svc, rootsFrom(fs.Args(), cfg), []string{*refDir}, logger)
	case "serve":
		runServe(ctx, svc, cfg, logger)
	case "purge-cache":
		if err := svc.PurgeCache(); err != nil {
			logger.Fatal("Cache purge failed", zap.Error(err))
		}
		fmt.Println("cache purged")
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vidsift <scan|unique|with-refs|serve|purge-cache> [flags] [path ...]")
}

// buildService wires decoder -> source -> cache -> pipeline -> matcher.
func buildService(cfg *config.Config, logger *logging.Logger) (*core.ScanService, error) {
	dec := ffmpeg.NewDecoder(cfg.Decoder.FFmpegPath, cfg.Decoder.FFprobePath, cfg.Decoder.ExtraArgs...)
	if err := dec.CheckInstallation(); err != nil {
		logger.Warn("Decoder binaries not resolvable; scans will fail", zap.Error(err))
	}

	source := frames.NewFFmpegSource(dec, frames.Options{
		Params:        cfg.Params(),
		DecodeTimeout: cfg.Pipeline.DecodeTimeout,
	}, logger.Logger)

	store, err := cache.New(cfg.Cache.Dir, logger.Logger)
	if err != nil {
		return nil, err
	}

	pipeline := engine.New(source, store, engine.Options{
		Params:        cfg.Params(),
		DecodeWorkers: cfg.Pipeline.WorkersDecode,
		DigestWorkers: cfg.Pipeline.WorkersDigest,
		QueueSize:     cfg.Pipeline.QueueSize,
		SpawnRate:     cfg.Pipeline.SpawnRate,
	}, logger.Logger)

	matcher := matching.New(cfg.MatchOptions())
	return core.NewScanService(pipeline, matcher, store, cfg.Scan.Extensions, logger.Logger), nil
}

func rootsFrom(args []string, cfg *config.Config) []string {
	if len(args) > 0 {
		return args
	}
	return cfg.Scan.Roots
}

func runScan(ctx context.Context, svc *core.ScanService, roots []string, logger *logging.Logger, print func(*core.ScanResults)) {
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "vidsift: no paths given and scan.roots not configured")
		os.Exit(2)
	}

	results, err := svc.RunOnce(ctx, roots)
	if err != nil {
		logger.Fatal("Scan failed", zap.Error(err))
	}
	print(results)
	if results.Report.Failed > 0 {
		os.Exit(3)
	}
}

func printGroups(results *core.ScanResults) {
	emitJSON(results.Groups)
}

func printUnique(results *core.ScanResults) {
	emitJSON(results.Unique)
}

func runWithRefs(ctx context.Context, svc *core.ScanService, candidateRoots, refRoots []string, logger *logging.Logger) {
	if len(candidateRoots) == 0 {
		fmt.Fprintln(os.Stderr, "vidsift: with-refs requires candidate paths")
		os.Exit(2)
	}

	groups, err := svc.RunWithRefs(ctx, candidateRoots, refRoots)
	if err != nil {
		logger.Fatal("Reference match failed", zap.Error(err))
	}
	emitJSON(groups)
}

func runServe(ctx context.Context, svc *core.ScanService, cfg *config.Config, logger *logging.Logger) {
	scheduler := core.NewRescanScheduler(svc, cfg.Scan.Roots, cfg.Scan.RescanSchedule, logger.Logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Rescan scheduler failed to start", zap.Error(err))
	}
	defer scheduler.Stop()

	router := api.NewRouter(logger, cfg, api.NewScanHandler(svc, cfg.Scan.Roots))
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		svc.Cancel()
		server.Shutdown(context.Background())
	}()

	logger.Info("Review API listening", zap.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func emitJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "vidsift: encode output: %v\n", err)
		os.Exit(1)
	}
}
