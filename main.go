package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"
)

func main() {
	logger := log.New(os.Stderr, "nanograd: ", log.LstdFlags)

	cfg, serveAddr, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.Fatal(err)
	}

	if serveAddr != "" {
		serve(serveAddr, cfg, logger)
		return
	}

	trainer, err := NewTrainer(cfg, DefaultDataset())
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := trainer.Run(ctx, os.Stdout); err != nil {
		logger.Fatal(err)
	}
}

// parseFlags resolves the run config: defaults, then the -config file, then
// any flag given explicitly. It also returns the -serve address, which is
// empty for a one-off training run. The config applies in both modes.
func parseFlags(args []string) (Config, string, error) {
	fs := flag.NewFlagSet("nanograd", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "JSON config file (defaults to the reference run)")
		serveAddr  = fs.String("serve", "", "serve the HTTP explorer on this address instead of training once")
		iterations = fs.Int("iterations", 0, "override iterations")
		lr         = fs.Float64("lr", 0, "override learning_rate")
		logEvery   = fs.Int("log-every", 0, "override log_every")
		seed       = fs.Uint64("seed", 0, "override seed")
		hiddenReLU = fs.Bool("hidden-relu", false, "apply ReLU between layers")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, "", err
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return Config{}, "", err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iterations":
			cfg.Iterations = *iterations
		case "lr":
			cfg.LearningRate = *lr
		case "log-every":
			cfg.LogEvery = *logEvery
		case "seed":
			cfg.Seed = *seed
		case "hidden-relu":
			cfg.HiddenReLU = *hiddenReLU
		}
	})
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, *serveAddr, nil
}

// serve exposes the explorer API; cfg is what /api/init starts from.
func serve(addr string, cfg Config, logger *log.Logger) {
	mux := http.NewServeMux()
	NewServer(logger, cfg).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal(err)
	}
}
