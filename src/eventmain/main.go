package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdk_trace "go.opentelemetry.io/otel/sdk/trace"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jiaming2012/backoffice/src/challenge"
	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/data"
	"github.com/jiaming2012/backoffice/src/dbutils"
	"github.com/jiaming2012/backoffice/src/eventconsumers"
	"github.com/jiaming2012/backoffice/src/eventpubsub"
	"github.com/jiaming2012/backoffice/src/ibcommission"
	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/router"
	"github.com/jiaming2012/backoffice/src/slack"
	"github.com/jiaming2012/backoffice/src/tradeengine"
	"github.com/jiaming2012/backoffice/src/utils"
	"github.com/jiaming2012/backoffice/src/worker"
)

const tickMinInterval = 250 * time.Millisecond

func main() {
	run()
}

// setupOTelSDK bootstraps the OpenTelemetry pipeline.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func setupOTelSDK(ctx context.Context) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	// shutdown calls cleanup functions registered via shutdownFuncs.
	// The errors from the calls are joined.
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	traceExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", "backoffice")))

	tracerProvider := sdk_trace.NewTracerProvider(
		sdk_trace.WithBatcher(traceExporter),
		sdk_trace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		handleErr(err)
		return
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
		metric.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	if err = runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		handleErr(err)
		return
	}

	return
}

func mustGetEnv(key string) string {
	value, err := utils.GetEnv(key)
	if err != nil {
		log.Fatalf("$%s not set: %v", key, err)
	}

	return value
}

func setupLogger() {
	log.SetOutput(os.Stdout)

	if level, err := log.ParseLevel(utils.GetEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		log.Warnf("invalid LOG_LEVEL: %v", err)
	} else {
		log.SetLevel(level)
	}

	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
	)))

	log.Infof("Log level set to %v", log.GetLevel())
}

// applyCopySettings pushes configured copy-trading defaults into the stored settings,
// leaving the admin pool untouched.
func applyCopySettings(ctx context.Context, db models.ICopyTradeStore, cfg models.CopyTradingConfigYAML) error {
	settings, err := db.GetCopySettings(ctx)
	if err != nil {
		return fmt.Errorf("applyCopySettings: %w", err)
	}

	settings.DefaultAdminSharePercentage = cfg.DefaultAdminSharePercentage
	settings.MinPayoutAmount = decimal.NewFromFloat(cfg.MinPayoutAmount)

	if err := db.SaveCopySettings(ctx, settings); err != nil {
		return fmt.Errorf("applyCopySettings: %w", err)
	}

	return nil
}

func setupPprof(r *mux.Router) {
	pprofRouter := r.PathPrefix("/debug/pprof").Subrouter()
	pprofRouter.HandleFunc("/", http.HandlerFunc(pprof.Index))
	pprofRouter.HandleFunc("/cmdline", http.HandlerFunc(pprof.Cmdline))
	pprofRouter.HandleFunc("/profile", http.HandlerFunc(pprof.Profile))
	pprofRouter.HandleFunc("/symbol", http.HandlerFunc(pprof.Symbol))
	pprofRouter.HandleFunc("/trace", http.HandlerFunc(pprof.Trace))
	pprofRouter.Handle("/allocs", pprof.Handler("allocs"))
	pprofRouter.Handle("/goroutine", pprof.Handler("goroutine"))
	pprofRouter.Handle("/heap", pprof.Handler("heap"))
	pprofRouter.Handle("/mutex", pprof.Handler("mutex"))
}

func run() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Panic(err)
	}

	setupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	if strings.ToLower(utils.GetEnvOrDefault("OTEL_ENABLED", "false")) == "true" {
		otelShutdown, err := setupOTelSDK(ctx)
		if err != nil {
			log.Fatalf("failed to setup otel sdk: %v", err)
		}

		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				log.Errorf("failed to shutdown otel sdk: %v", err)
			}
		}()
	}

	port := mustGetEnv("PORT")

	// Load config
	configPath := utils.GetEnvOrDefault("BACKOFFICE_CONFIG_FILE", path.Join(os.Getenv("PROJECTS_DIR"), "backoffice", "src", utils.BACKOFFICE_CONFIG_FILENAME))
	cfg, err := utils.LoadBackofficeConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	defaultPlan, err := cfg.Commission.DefaultPlan.ToPlan()
	if err != nil {
		log.Fatalf("failed to build default commission plan: %v", err)
	}

	// Setup postgres
	sqlLevel := gormlogger.Warn
	if log.GetLevel() >= log.DebugLevel {
		sqlLevel = gormlogger.Info
	}

	db, err := dbutils.InitPostgres(
		mustGetEnv("POSTGRES_HOST"),
		mustGetEnv("POSTGRES_PORT"),
		mustGetEnv("POSTGRES_USER"),
		mustGetEnv("POSTGRES_PASSWORD"),
		mustGetEnv("POSTGRES_DB"),
		sqlLevel,
	)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	dbService := data.NewDatabaseService(db)

	if err := applyCopySettings(ctx, dbService, cfg.CopyTrading); err != nil {
		log.Fatalf("failed to apply copy settings: %v", err)
	}

	// Setup engines
	bus := eventpubsub.NewBus("backoffice")
	engine := tradeengine.NewEngine(dbService, bus, cfg.ContractSizeOverrides())

	copyService := copytrade.NewService(dbService, engine)
	copyService.SetDefaultMaxLotSize(cfg.CopyTrading.DefaultMaxLotSize)

	ibService := ibcommission.NewService(dbService, engine, ibcommission.Config{
		MaxDepth:    cfg.Commission.MaxDepth,
		DefaultPlan: defaultPlan,
	})

	challengeService := challenge.NewService(dbService, engine)

	consumer := eventconsumers.NewTradeLifecycleConsumer(&wg, dbService, copyService, ibService, challengeService)
	if err := consumer.Start(ctx, bus); err != nil {
		log.Fatalf("failed to start trade lifecycle consumer: %v", err)
	}

	// Setup workers
	book := worker.NewPriceBook()

	var notifier worker.Notifier
	if webhookURL := os.Getenv("SLACK_WEBHOOK_URL"); webhookURL != "" {
		notifier = slack.NewWebhook(webhookURL)
	}

	scheduler, err := worker.NewSettlementScheduler(&wg, copyService, cfg.Settlement)
	if err != nil {
		log.Fatalf("failed to setup settlement scheduler: %v", err)
	}
	scheduler.SetNotifier(notifier)
	scheduler.Start(ctx)

	if cfg.PriceFeed.URL != "" {
		feed := worker.NewPriceFeed(&wg, cfg.PriceFeed.URL, cfg.PriceFeed.Symbols, book)
		feed.Start(ctx)

		tickProcessor := worker.NewTickProcessor(&wg, dbService, challengeService, book, tickMinInterval)
		tickProcessor.SetNotifier(notifier)
		tickProcessor.Start(ctx, feed.Updates())
	} else {
		log.Warn("price feed url not set: risk checks run only on trade events")
	}

	// Setup router
	r := mux.NewRouter()
	handler := router.NewHandler(copyService, ibService, challengeService, engine, dbService, book)
	router.SetupHandler(r.PathPrefix("/api").Subrouter(), handler)
	setupPprof(r)

	srv := &http.Server{
		Handler: otelhttp.NewHandler(r, "backoffice"),
		Addr:    fmt.Sprintf(":%s", port),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	log.Info("Main: init complete")

	// Block here until program is shut down
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("failed to shutdown server: %v", err)
	}

	cancel()

	bus.WaitAsync()
	wg.Wait()

	log.Info("Main: gracefully stopped!")
}
