package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supported commands.
const (
	CommandServe  = "serve"
	CommandWorker = "worker"
	CommandInitDB = "init-db"
)

// startupTimeout bounds the connection to the backends at startup.
const startupTimeout = 30 * time.Second

type AppProvider interface {
	Run() error
	InitDB(ctx context.Context) error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
	Clean()
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	bookService    BookServiceProvider
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App with the components needed by the command.
// The web server is only built by the `serve` command and the notification
// workers are not started by the `init-db` command.
func NewApp(command string) (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// Setup the logging module with a rotating file writer.
	clock := NewClock(config.IsProduction)
	logWriter := NewRotatingFileWriter(config, clock, command)
	logger, flusher := SetupLogging(config, logWriter, clock)
	logger = logger.Named(command)

	app := &App{logger: logger, config: config}
	app.addCleanup(func() {
		_ = flusher()
		_ = logWriter.Close()
	})

	if err = app.setup(command, clock); err != nil {
		logger.Error("failed to setup application", zap.String("app.command", command), zap.Error(err))
		app.Clean()
		return nil, err
	}
	return app, nil
}

func (app *App) setup(command string, clock Clocker) error {
	logger, config := app.logger, app.config
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// Setup the record store.
	storage, err := NewBookStorage(ctx, logger, config)
	if err != nil {
		return fmt.Errorf("failed to setup record store: %s", err)
	}
	app.addCleanup(func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close record store", zap.Error(cerr))
		}
	})

	ids := NewIDsHandler()
	if command == CommandInitDB {
		app.bookService = NewBookService(logger, config, clock, ids, storage, nil, nil)
		return nil
	}

	// Setup the notification queue, its results backend and workers.
	queue, err := NewQueue(config, clock)
	if err != nil {
		return fmt.Errorf("failed to setup notification queue: %s", err)
	}
	app.addCleanup(func() { _ = queue.Close() })

	results, err := NewResultBackend(config)
	if err != nil {
		return fmt.Errorf("failed to setup results backend: %s", err)
	}
	app.addCleanup(func() { _ = results.Close() })

	renderer, err := NewNotificationRenderer()
	if err != nil {
		return err
	}
	mailer := NewSMTPMailer(&config.Mail)

	for i := 1; i <= config.Queue.Workers; i++ {
		consumer := NewNotificationConsumer(
			logger.With(zap.Int("worker", i)),
			&config.Queue,
			queue,
			mailer,
			renderer,
			results,
			clock,
		)
		app.queueConsumers = append(app.queueConsumers, consumer.Consume)
	}

	if command == CommandWorker {
		return nil
	}

	// Setup the book service and the web pages.
	bookService := NewBookService(logger, config, clock, ids, storage, queue, results)
	app.bookService = bookService

	views, err := NewViews(config.SecretKey)
	if err != nil {
		return err
	}

	stats := &Statistics{
		version:   config.GitTag,
		container: IsAppRunningInDocker(),
		started:   clock.Now(),
		runtime:   runtime.Version(),
		platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		stats.version = config.GitCommit
	}

	apiService := NewAPIHandler(logger, config, stats, clock, ids, bookService, queue, results, views)

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please try again later.")

	// Build the web server definition.
	app.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}
	return nil
}

func (app *App) addCleanup(f func()) {
	app.cleanups = append(app.cleanups, f)
}

// Run starts the web server if any, the notification workers and a goroutine
// which is responsible to stop them.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("application stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// InitDB empties the record store and inserts the demo books.
func (app *App) InitDB(ctx context.Context) error {
	defer app.Clean()
	books, err := app.bookService.Reset(ctx, DemoBooks())
	if err != nil {
		app.logger.Error("failed to initialize the database", zap.Error(err))
		return err
	}
	app.logger.Info("database initialized with demo books", zap.Int("books.count", len(books)))
	return nil
}

// Clean calls all registered cleanups functions in reverse order.
func (app *App) Clean() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
	app.cleanups = nil
}

// Serve starts the web server. Its returned error will be caught by
// the errorgroup. It returns immediately when no server is configured.
func (app *App) Serve() func() error {
	return func() error {
		if app.server == nil {
			return nil
		}
		app.logger.Info("web server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
		)
		err := app.server.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("application stopping. reason: requested to stop")
		} else {
			app.logger.Info("application stopping. reason: errored at running")
		}

		if app.server == nil {
			return nil
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch err {
		case nil, http.ErrServerClosed:
			app.logger.Info("web server graceful shutdown succeeded")
		case context.DeadlineExceeded:
			app.logger.Info("web server graceful shutdown timed out")
		default:
			app.logger.Info("web server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Info("web server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		app.logger.Info("notification workers starting", zap.Int("workers", len(app.queueConsumers)))
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
