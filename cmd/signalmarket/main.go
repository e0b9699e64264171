package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mkoberg/signalmarket/app/controllers"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/audit"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
	"github.com/mkoberg/signalmarket/internal/pkg/cache"
	"github.com/mkoberg/signalmarket/internal/pkg/database"
	"github.com/mkoberg/signalmarket/internal/pkg/env"
	"github.com/mkoberg/signalmarket/internal/pkg/jobqueue"
	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
	"github.com/mkoberg/signalmarket/internal/pkg/router"
	"github.com/mkoberg/signalmarket/internal/pkg/scanner"
	"github.com/mkoberg/signalmarket/internal/pkg/upload"
	"github.com/mkoberg/signalmarket/internal/pkg/webhook"
)

func main() {
	app, manager := NewApplication()

	// Graceful shutdown: stop accepting requests, then drain the workers.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		fiberlog.Info("[App] Shutting down...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			fiberlog.Errorf("[App] Shutdown error: %v", err)
		}
		manager.Stop()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires the whole pipeline and returns the HTTP app plus the
// background job manager.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repos := repository.NewRepositories(database.GetDB())

	blobCfg, err := blobstore.LoadConfig()
	if err != nil {
		log.Fatalf("blob store config: %v", err)
	}
	blobs, err := blobstore.NewClient(blobCfg)
	if err != nil {
		log.Fatalf("blob store client: %v", err)
	}

	sealer, err := blobstore.NewSealerFromEnv()
	if err != nil {
		log.Fatalf("payload sealer: %v", err)
	}

	auditor := audit.NewRecorder(repos.AuditLogs)
	verdicts := quarantine.NewApplier(repos.Uploads, auditor)

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	// Provider registry. A provider that cannot be configured stays
	// unregistered; its deliveries then 404 instead of passing unverified.
	registry := webhook.NewRegistry()
	registry.Register(webhook.NewPaygateProviderFromEnv(repos.Orders))
	if avscan, err := webhook.NewAVScanProviderFromEnv(repos.Uploads, verdicts); err != nil {
		fiberlog.Warnf("[App] AV scan provider not registered: %v", err)
	} else {
		registry.Register(avscan)
	}
	fiberlog.Infof("[App] Webhook providers registered: %v", registry.Names())

	replay := webhook.NewReplayGuard(webhook.DefaultReplayTTL)
	gate := webhook.NewGate(registry, replay, blobs, sealer, repos.WebhookEvents, queue)
	processor := webhook.NewProcessor(repos.WebhookEvents, blobs, sealer, registry, queue, auditor, webhook.DefaultProcessorConfig())
	scanWorker := scanner.NewWorker(repos.Uploads, blobs, verdicts)

	queue.RegisterHandler(jobqueue.JobTypeWebhookProcess, func(ctx context.Context, payload map[string]interface{}) error {
		p, err := webhook.WebhookProcessPayloadFromMap(payload)
		if err != nil {
			return err
		}
		return processor.Process(ctx, p.EventID)
	})
	queue.RegisterHandler(jobqueue.JobTypeUploadScan, func(ctx context.Context, payload map[string]interface{}) error {
		p, err := upload.UploadScanPayloadFromMap(payload)
		if err != nil {
			return err
		}
		return scanWorker.Scan(ctx, p.UploadID)
	})

	reconciler := webhook.NewReconciler(repos.WebhookEvents, queue)
	manager.RegisterSweep("webhook reconciliation", time.Minute, reconciler.Sweep)
	scanReconciler := upload.NewReconciler(repos.Uploads, queue)
	manager.RegisterSweep("scan recovery", time.Minute, scanReconciler.Sweep)
	janitor := upload.NewIntentJanitor(repos.Uploads, blobs)
	manager.RegisterSweep("intent expiry", 5*time.Minute, janitor.Sweep)
	manager.Start()

	tokenSecret := env.GetEnv("UPLOAD_TOKEN_SECRET", "")
	if tokenSecret == "" {
		log.Fatal("UPLOAD_TOKEN_SECRET is required")
	}
	presign := upload.NewPresignService(repos.Uploads, blobs, tokenSecret)
	finalizer := upload.NewFinalizer(repos.Uploads, blobs, queue, tokenSecret)

	app := fiber.New(fiber.Config{
		AppName:   "signalmarket",
		BodyLimit: 1 * 1024 * 1024, // uploads go direct to storage, not through us
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Controllers{
		Webhooks: controllers.NewWebhookController(gate),
		Uploads:  controllers.NewUploadController(presign, finalizer, repos.Uploads),
		Admin:    controllers.NewAdminController(repos, verdicts, auditor, queue),
	})

	return app, manager
}
