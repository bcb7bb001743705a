package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"checkin/internal/captcha"
	"checkin/internal/config"
	"checkin/internal/logger"
	"checkin/internal/notify"
	"checkin/internal/repository/sqlite"
	"checkin/internal/routes"
	"checkin/internal/services"
	"checkin/internal/services/acquire"
	"checkin/internal/services/ai"
	"checkin/internal/services/browser"
	"checkin/internal/services/lease"
	"checkin/internal/services/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	hubService *websocket.HubService
	manager    *services.Manager
	notifier   notify.Notifier
	detector   *ai.DetectorService
	classifier *ai.ClassifierService
}

// NewApp opens the history database and loads the vision models. The
// browser is started by Run.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	classifier, err := ai.NewClassifierService(cfg, log)
	if err != nil {
		detector.Close()
		db.Close()
		return nil, err
	}

	hub := websocket.NewHubService(log)
	mng := services.NewManager(sqlite.NewAttemptRepository(db), sqlite.NewRenewalRepository(db), hub, log)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		hubService: hub,
		manager:    mng,
		notifier:   notify.New(cfg.NotifyWebhook, log),
		detector:   detector,
		classifier: classifier,
	}, nil
}

// Close releases the models and the database.
func (a *App) Close() {
	a.classifier.Close()
	a.detector.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Failed to close database: %v", err)
	}
}

// Run performs one check-in, then the lease check, and sends the log of the
// run as a notification. The returned error is the check-in's.
func (a *App) Run(ctx context.Context) error {
	if err := a.config.CheckCredentials(); err != nil {
		a.logger.Error("Cannot start: %v", err)
		return err
	}

	a.logger.ResetTrail()
	runID := a.manager.StartRun()
	a.logger.Info("Run %s started", runID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.hubService.Run(ctx)

	if a.config.MonitorPort > 0 {
		server := a.startMonitor()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			server.Shutdown(shutdownCtx)
		}()
	}

	if !a.config.Debug && a.config.MaxDelay > 0 {
		delay := time.Duration(rand.Intn(a.config.MaxDelay+1))*time.Minute + time.Duration(rand.Intn(61))*time.Second
		a.logger.Info("Waiting %s before starting", delay.Round(time.Second))
		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
	}

	checkinErr := a.checkIn(ctx)
	if checkinErr != nil {
		a.logger.Error("Check-in failed: %v", checkinErr)
	}

	report := a.renewLeases(ctx)

	body := a.logger.Trail()
	if report != "" {
		body += "\n\n" + report
	}
	sendCtx, done := summaryContext(ctx)
	defer done()
	if err := a.notifier.Send(sendCtx, "Rainyun check-in", body); err != nil {
		a.logger.Warning("Failed to send notification: %v", err)
	}
	return checkinErr
}

// summaryTimeout bounds the end-of-run notification.
const summaryTimeout = 30 * time.Second

// summaryContext outlives cancellation of the run so an interrupted run
// still reports what it did.
func summaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
}

func (a *App) startMonitor() *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.MonitorPort),
		Handler:           routes.SetupRoutes(a.manager, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Monitor server stopped: %v", err)
		}
	}()
	a.logger.Info("Monitor listening on http://localhost:%d", a.config.MonitorPort)
	return server
}

func (a *App) checkIn(ctx context.Context) error {
	page, err := browser.New(a.config, a.logger)
	if err != nil {
		return err
	}
	defer page.Close()

	fetcher := acquire.NewHTTPFetcher(a.config.DownloadWait(), browser.UserAgent, a.logger)
	imager := ai.NewImagerService()
	vision := captcha.Vision{
		Detector:   a.detector,
		Classifier: a.classifier,
		Matcher:    ai.NewSIFTMatcher(a.config.MatchRatio),
		Imager:     imager,
	}
	if a.config.Debug {
		vision.Annotator = imager
	}

	scratch := captcha.NewScratch(a.config.ScratchDirectory)
	a.logger.Debug("Captcha images are kept in %s", scratch.Dir())
	controller := captcha.NewController(page, fetcher, vision, scratch, a.logger, controllerOptions(a.config))
	controller.SetObserver(a.manager)

	result, err := NewCheckIn(page, controller, a.config, a.logger).Run(ctx)
	if err != nil {
		return err
	}
	if result.AlreadySigned {
		a.logger.Info("Nothing to claim today")
	}
	return nil
}

func controllerOptions(cfg *config.Config) captcha.Options {
	opts := captcha.DefaultOptions()
	sel := cfg.Selectors
	opts.Selectors = captcha.Selectors{
		Background: orDefault(sel.Background, opts.Selectors.Background),
		Sprite:     orDefault(sel.Sprite, opts.Selectors.Sprite),
		Confirm:    orDefault(sel.Confirm, opts.Selectors.Confirm),
		Result:     orDefault(sel.Result, opts.Selectors.Result),
		Reload:     orDefault(sel.Reload, opts.Selectors.Reload),
	}
	opts.SuccessMarker = orDefault(cfg.SuccessClass, opts.SuccessMarker)
	if len(cfg.RejectLabels) > 0 {
		opts.RejectLabels = cfg.RejectLabels
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.Debug = cfg.Debug
	return opts
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// renewLeases runs the lease check when an API key is configured and
// returns its report.
func (a *App) renewLeases(ctx context.Context) string {
	if a.config.APIKey == "" {
		a.logger.Debug("No API key, skipping lease check")
		return ""
	}

	policy := lease.Policy{
		AutoRenew:     a.config.AutoRenew,
		ThresholdDays: a.config.RenewThresholdDays,
		Days:          a.config.RenewDays,
		Cost:          a.config.RenewCost,
	}
	client := lease.NewClient(a.config.APIBaseURL, a.config.APIKey, a.config.DownloadWait())
	result := lease.NewManager(client, policy, a.logger).CheckAndRenew(ctx)
	a.manager.RecordRenewals(result, policy)
	return lease.Report(result)
}
