package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lpernett/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/analyzer"
	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/utils"
)

const usage = `usage: roomscout <command> [flags]

commands:
  detector     run the room detection service
  recommender  run the travel recommendation API
  watch        run detection and print each analysis to the console
  dataset      write a dataset.yaml for the training classes`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	rules, err := loadRules(cfg)
	if err != nil {
		logger.Fatal("Failed to load rules", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "detector":
		cmd := flag.NewFlagSet("detector", flag.ExitOnError)
		addr := cmd.String("addr", listenAddr(cfg.Detector.Addr), "Address to listen on")
		source := cmd.String("source", cfg.Detector.VideoSource, "Video file or URL; empty uses the camera")
		cmd.Parse(os.Args[2:])
		cfg.Detector.Addr = *addr
		cfg.Detector.VideoSource = *source
		err = runDetector(ctx, cfg, rules)
	case "recommender":
		cmd := flag.NewFlagSet("recommender", flag.ExitOnError)
		addr := cmd.String("addr", listenAddr(cfg.Recommender.Addr), "Address to listen on")
		cmd.Parse(os.Args[2:])
		cfg.Recommender.Addr = *addr
		err = runRecommender(ctx, cfg, rules)
	case "watch":
		cmd := flag.NewFlagSet("watch", flag.ExitOnError)
		source := cmd.String("source", cfg.Detector.VideoSource, "Video file or URL; empty uses the camera")
		cmd.Parse(os.Args[2:])
		cfg.Detector.VideoSource = *source
		err = runWatch(ctx, cfg, rules)
	case "dataset":
		cmd := flag.NewFlagSet("dataset", flag.ExitOnError)
		dir := cmd.String("dir", "dataset", "Dataset root directory")
		cmd.Parse(os.Args[2:])
		var path string
		path, err = utils.WriteDatasetYAML(*dir, rules.TrainingClasses)
		if err == nil {
			logger.Info("Dataset config written", zap.String("path", path), zap.Int("classes", len(rules.TrainingClasses)))
		}
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func loadRules(cfg *config.Config) (*config.Rules, error) {
	if cfg.RulesPath != "" {
		return config.LoadRules(cfg.RulesPath)
	}
	return config.DefaultRules()
}

// listenAddr lets PORT override the configured address.
func listenAddr(addr string) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return addr
}

// connectRedis returns nil when no redis address is configured.
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 20 * time.Second, // initial connection timeout
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	zap.L().Info("Successfully connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// newAnalyzer builds the room analyzer, mirroring history into redis when
// configured. The store is nil without redis. cleanup flushes the mirror and
// closes the redis client.
func newAnalyzer(ctx context.Context, cfg *config.Config, rules *config.Rules) (*analyzer.Analyzer, *utils.HistoryStore, func(), error) {
	opts := []analyzer.Option{analyzer.WithHistorySize(cfg.Detector.HistorySize)}

	client, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	var store *utils.HistoryStore
	if client != nil {
		store = utils.NewHistoryStore(client, cfg.Redis.HistoryKey, cfg.Detector.HistorySize)
		opts = append(opts, analyzer.WithHistorySink(store))
	}

	a := analyzer.New(rules, opts...)
	cleanup := func() {
		a.Close()
		if client != nil {
			_ = client.Close()
		}
	}
	return a, store, cleanup, nil
}
