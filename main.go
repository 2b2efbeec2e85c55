package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := LoadConfig(os.Args[1:], os.Getenv)
	if err == flag.ErrHelp {
		fmt.Print(Usage())
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Check Input Command Line Parameters")
		fmt.Fprintln(os.Stderr, Usage())
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)
	log.Info().Int("cache_size", cfg.CacheSize).Int("workers", cfg.Workers).Msg("starting positions-service")

	// Отмена по сигналу: новые задачи не ставятся, начатые доводятся до конца
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, closePersister, err := openPersister(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closePersister()

	initial, err := persister.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load store")
	}
	log.Info().Int("extent", len(initial)).Msg("store loaded")

	// Кеш и хранилище живут ровно один запуск
	metrics := NewMetrics()
	svc := NewService(NewPositionStore(initial), NewCache(cfg.CacheSize), persister, metrics, cfg.MaxExtent)

	if cfg.Clean {
		if _, err := CleanOutputs(outputDir(cfg)); err != nil {
			log.Error().Err(err).Msg("failed to clean output files")
		}
	}

	if err := runBatch(ctx, cfg, svc, metrics); err != nil {
		log.Fatal().Err(err).Msg("failed to resolve task lists")
	}

	if !cfg.Serve {
		return
	}

	srv := StartHTTPServer(cfg, NewRouter(svc, metrics))
	if cfg.KafkaBroker != "" {
		StartConsumer(ctx, cfg, svc)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func setupLogging(cfg *Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openPersister выбирает Postgres, если задан DSN, иначе файл значений
func openPersister(ctx context.Context, cfg *Config) (Persister, func(), error) {
	if cfg.PostgresDSN != "" {
		db, err := NewDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return &FilePersister{Path: cfg.ItemsFile}, func() {}, nil
}

// runBatch выполняет списки задач, если они заданы
func runBatch(ctx context.Context, cfg *Config, svc *Service, metrics *Metrics) error {
	var readers, writers []string
	var err error
	if cfg.ReaderFile != "" {
		if readers, err = LoadTaskList(cfg.ReaderFile); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	if cfg.WriterFile != "" {
		if writers, err = LoadTaskList(cfg.WriterFile); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	if len(readers)+len(writers) == 0 {
		return nil
	}

	log.Info().Int("readers", len(readers)).Int("writers", len(writers)).Msg("dispatching tasks")
	results := NewDispatcher(svc, cfg.Workers, metrics).Run(ctx, readers, writers)
	log.Info().Int("tasks", len(results)).Int("failed", Failed(results)).Msg("tasks finished")
	return nil
}

// outputDir - каталог с файлами результатов (там же, где список задач чтения)
func outputDir(cfg *Config) string {
	if cfg.ReaderFile == "" {
		return "."
	}
	return filepath.Dir(cfg.ReaderFile)
}
