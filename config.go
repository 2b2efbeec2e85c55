package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

type Config struct {
	CacheSize   int    `json:"cache_size"`   // ёмкость кеша
	ReaderFile  string `json:"reader_file"`  // список задач чтения
	WriterFile  string `json:"writer_file"`  // список задач записи
	ItemsFile   string `json:"items_file"`   // файл хранилища
	Workers     int    `json:"workers"`      // размер пула воркеров
	MaxExtent   int    `json:"max_extent"`   // позиции записи должны быть меньше этого значения
	PostgresDSN string `json:"postgres_dsn"` // если задан - хранилище в Postgres вместо файла
	KafkaBroker string `json:"kafka_broker"` // брокер Kafka для задач записи (serve)
	KafkaTopic  string `json:"kafka_topic"`  // топик/тема Kafka
	HTTPAddr    string `json:"http_addr"`    // адрес HTTP сервера (serve)
	LogLevel    string `json:"log_level"`
	Serve       bool   `json:"serve"` // не выходить после задач, обслуживать HTTP/Kafka
	Clean       bool   `json:"clean"` // удалить *.out.txt перед запуском
	Pretty      bool   `json:"-"`
}

// Создаёт конфигурацию с переопределениями окружения и значениями по умолчанию
func DefaultConfig(getenv func(string) string) *Config {
	cfg := &Config{
		CacheSize:  4,
		Workers:    5,
		MaxExtent:  DefaultMaxExtent,
		KafkaTopic: "position-writes",
		HTTPAddr:   ":8080",
		LogLevel:   "info",
	}
	cfg.PostgresDSN = getenv("POSTGRES_DSN")
	cfg.KafkaBroker = getenv("KAFKA_BROKER")
	if v := getenv("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	// Некорректное значение не молча игнорируется: оно дойдёт до validate
	if v := getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			n = -1
		}
		cfg.CacheSize = n
	}
	return cfg
}

// flagValues - значения флагов до слияния с конфигурацией
type flagValues struct {
	cfg        Config
	configPath string
}

func newFlagSet() (*flag.FlagSet, *flagValues) {
	fv := &flagValues{}
	fs := flag.NewFlagSet("positions-service", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVar(&fv.cfg.CacheSize, "size", 0, "Size of cache")
	fs.StringVar(&fv.cfg.ReaderFile, "reader_file", "", "File listing read-task files")
	fs.StringVar(&fv.cfg.WriterFile, "writer_file", "", "File listing write-task files")
	fs.StringVar(&fv.cfg.ItemsFile, "items_file", "", "Items (store) file")
	fs.IntVar(&fv.cfg.Workers, "workers", 0, "Worker pool size")
	fs.IntVar(&fv.cfg.MaxExtent, "max-extent", 0, "Upper bound (exclusive) for write positions")
	fs.StringVar(&fv.cfg.PostgresDSN, "postgres-dsn", "", "Keep the store in Postgres instead of the items file")
	fs.StringVar(&fv.cfg.KafkaBroker, "kafka-broker", "", "Kafka broker for write-tasks (serve mode)")
	fs.StringVar(&fv.cfg.KafkaTopic, "kafka-topic", "", "Kafka topic for write-tasks")
	fs.StringVar(&fv.cfg.HTTPAddr, "http-addr", "", "HTTP listen address (serve mode)")
	fs.StringVar(&fv.cfg.LogLevel, "log-level", "", "Log level")
	fs.BoolVar(&fv.cfg.Serve, "serve", false, "Keep serving HTTP/Kafka after the task lists")
	fs.BoolVar(&fv.cfg.Clean, "clean", false, "Delete *.out.txt before running")
	fs.BoolVar(&fv.cfg.Pretty, "pretty", false, "Human-readable console logs")
	fs.StringVar(&fv.configPath, "config", "", "JSONC config file")

	return fs, fv
}

// Usage - справка по флагам
func Usage() string {
	fs, _ := newFlagSet()
	return "Usage: positions-service [flags]\n\n" + fs.FlagUsages()
}

// LoadConfig собирает конфигурацию, старшинство по возрастанию:
// умолчания, окружение, файл --config, флаги командной строки.
func LoadConfig(args []string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig(getenv)

	fs, fv := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if fv.configPath != "" {
		fileCfg, err := loadConfigFile(fv.configPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		mergeConfig(cfg, fileCfg)
	}

	applyFlags(cfg, fs, &fv.cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(data)
}

// parseConfig принимает JSON с комментариями и хвостовыми запятыми
func parseConfig(data []byte) (*Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigFileInvalid, err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigFileInvalid, err)
	}
	return &cfg, nil
}

func mergeConfig(base, overlay *Config) {
	if overlay.CacheSize != 0 {
		base.CacheSize = overlay.CacheSize
	}
	if overlay.Workers != 0 {
		base.Workers = overlay.Workers
	}
	if overlay.MaxExtent != 0 {
		base.MaxExtent = overlay.MaxExtent
	}
	for _, f := range [][2]*string{
		{&base.ReaderFile, &overlay.ReaderFile},
		{&base.WriterFile, &overlay.WriterFile},
		{&base.ItemsFile, &overlay.ItemsFile},
		{&base.PostgresDSN, &overlay.PostgresDSN},
		{&base.KafkaBroker, &overlay.KafkaBroker},
		{&base.KafkaTopic, &overlay.KafkaTopic},
		{&base.HTTPAddr, &overlay.HTTPAddr},
		{&base.LogLevel, &overlay.LogLevel},
	} {
		if *f[1] != "" {
			*f[0] = *f[1]
		}
	}
	base.Serve = base.Serve || overlay.Serve
	base.Clean = base.Clean || overlay.Clean
}

// applyFlags переносит только явно заданные флаги
func applyFlags(cfg *Config, fs *flag.FlagSet, flags *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "size":
			cfg.CacheSize = flags.CacheSize
		case "reader_file":
			cfg.ReaderFile = flags.ReaderFile
		case "writer_file":
			cfg.WriterFile = flags.WriterFile
		case "items_file":
			cfg.ItemsFile = flags.ItemsFile
		case "workers":
			cfg.Workers = flags.Workers
		case "max-extent":
			cfg.MaxExtent = flags.MaxExtent
		case "postgres-dsn":
			cfg.PostgresDSN = flags.PostgresDSN
		case "kafka-broker":
			cfg.KafkaBroker = flags.KafkaBroker
		case "kafka-topic":
			cfg.KafkaTopic = flags.KafkaTopic
		case "http-addr":
			cfg.HTTPAddr = flags.HTTPAddr
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "serve":
			cfg.Serve = flags.Serve
		case "clean":
			cfg.Clean = flags.Clean
		case "pretty":
			cfg.Pretty = flags.Pretty
		}
	})
}

type inputFile struct{ name, path string }

// validateConfig: без обязательных входных файлов работа не начинается
func validateConfig(cfg *Config) error {
	if cfg.CacheSize <= 0 {
		return errCacheSizeInvalid
	}
	if cfg.Workers <= 0 {
		return errWorkersInvalid
	}
	// позиция хранится в integer колонке Postgres
	if cfg.MaxExtent <= 0 || cfg.MaxExtent > math.MaxInt32 {
		return fmt.Errorf("%w: %d", errMaxExtentInvalid, cfg.MaxExtent)
	}

	var required []inputFile
	if cfg.PostgresDSN == "" {
		required = append(required, inputFile{"items_file", cfg.ItemsFile})
	}
	// В режиме serve списки задач необязательны, но если указаны - должны существовать
	for _, f := range []inputFile{
		{"reader_file", cfg.ReaderFile},
		{"writer_file", cfg.WriterFile},
	} {
		if !cfg.Serve || f.path != "" {
			required = append(required, f)
		}
	}

	for _, f := range required {
		if f.path == "" {
			return fmt.Errorf("%w: --%s is required", errInputFileMissing, f.name)
		}
		st, err := os.Stat(f.path)
		if err != nil || st.IsDir() {
			return fmt.Errorf("%w: %s %s", errInputFileMissing, f.name, f.path)
		}
	}
	return nil
}
