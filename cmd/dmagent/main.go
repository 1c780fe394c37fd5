package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bmblueprint/dmagent/internal/api"
	"github.com/bmblueprint/dmagent/internal/flow"
	"github.com/bmblueprint/dmagent/internal/genai"
	"github.com/bmblueprint/dmagent/internal/ghl"
	"github.com/bmblueprint/dmagent/internal/notify"
	"github.com/bmblueprint/dmagent/internal/slots"
	"github.com/bmblueprint/dmagent/internal/store"
	"github.com/bmblueprint/dmagent/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for agent state data
	DefaultStateDir = "/var/lib/dmagent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "dmagent.db"
)

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)

	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	engine, err := buildEngine(flags)
	if err != nil {
		slog.Error("Failed to initialize conversation engine", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(engine, st, buildAPIOptions(flags)...)
	slog.Info("Bootstrapping DM agent", "api_addr", *flags.apiAddr, "db_driver", *flags.dbDriver)
	if err := server.Run(); err != nil {
		slog.Error("DM agent failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	LogLevel    string
	DbDriver    string
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	OpenAIModel string
	APIAddr     string
	GHLAPIKey   string
	BookingLink string
	Threshold   int64
}

// Flags holds command line flag values
type Flags struct {
	dbDriver    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	apiAddr     *string
	ghlAPIKey   *string
	bookingLink *string
	threshold   *int64
}

// initializeLogger sets up structured logging at the configured level.
func initializeLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		LogLevel:    util.GetEnvDefault("LOG_LEVEL", "info"),
		DbDriver:    os.Getenv("DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    util.GetEnvDefault("DMAGENT_STATE_DIR", DefaultStateDir),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		APIAddr:     util.GetEnvDefault("API_ADDR", api.DefaultAddr),
		GHLAPIKey:   os.Getenv("GHL_API_KEY"),
		BookingLink: os.Getenv("GHL_BOOKING_LINK"),
		Threshold:   util.ParseIntEnv("QUALIFICATION_THRESHOLD_USD", 50_000),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		config.DbDriver = "sqlite3"
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.DbDriver == "" {
		if strings.HasPrefix(config.DatabaseURL, "postgres") {
			config.DbDriver = "postgres"
		} else {
			config.DbDriver = "sqlite3"
		}
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDriver:    flag.String("db-driver", config.DbDriver, "database driver: sqlite3, postgres, or memory (overrides $DB_DRIVER)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		ghlAPIKey:   flag.String("ghl-api-key", config.GHLAPIKey, "GoHighLevel API key (overrides $GHL_API_KEY)"),
		bookingLink: flag.String("booking-link", config.BookingLink, "calendar link sent to qualified leads (overrides $GHL_BOOKING_LINK)"),
		threshold:   flag.Int64("qualification-threshold", config.Threshold, "portfolio size in USD at which a lead qualifies (overrides $QUALIFICATION_THRESHOLD_USD)"),
	}
	flag.Parse()
	return flags
}

// buildStore selects and initializes the configured storage backend.
func buildStore(flags Flags) (store.Store, error) {
	switch *flags.dbDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	case "memory":
		return store.NewInMemoryStore(), nil
	default:
		return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
}

// buildEngine wires the oracle clients, the CRM and notification adapters,
// and the stage handlers into a conversation engine.
func buildEngine(flags Flags) (*flow.Engine, error) {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return nil, err
	}

	classifier := flow.NewOracleClassifier(gaClient)
	extractor := flow.NewOracleExtractor(gaClient)
	composer := flow.NewComposer(gaClient, flow.DefaultPersona())
	slotProvider := slots.NewBusinessHoursProvider()

	var leads flow.LeadSink
	if *flags.ghlAPIKey != "" {
		ghlClient, err := ghl.NewClient(
			ghl.WithAPIKey(*flags.ghlAPIKey),
			ghl.WithPipeline(os.Getenv("GHL_PIPELINE_ID"), os.Getenv("GHL_STAGE_ID")),
			ghl.WithBookingLink(*flags.bookingLink),
		)
		if err != nil {
			return nil, err
		}
		leads = ghlClient
	} else {
		slog.Warn("GHL_API_KEY not set, qualified leads will not reach the CRM")
	}

	var notifier flow.Notifier = notify.NoopNotifier{}
	if util.ParseBoolEnv("OPERATOR_ALERTS_DISABLED", false) {
		slog.Info("Operator alerts disabled by configuration")
	} else if n, err := notify.NewTwilioNotifier(); err != nil {
		slog.Warn("Twilio notifier not configured, operator alerts disabled", "error", err)
	} else {
		notifier = n
	}

	handlers := flow.NewHandlers(classifier, extractor, composer, slotProvider, leads, notifier,
		flow.WithQualificationThreshold(*flags.threshold))
	return flow.NewEngine(handlers, extractor, notifier), nil
}

// buildAPIOptions assembles API server options.
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.bookingLink != "" {
		opts = append(opts, api.WithBookingLink(*flags.bookingLink))
	}
	return opts
}
