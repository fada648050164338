package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"parkvision-backend/config"
	"parkvision-backend/internal/api"
	"parkvision-backend/internal/camera"
	"parkvision-backend/internal/db"
	"parkvision-backend/internal/ingest"
	"parkvision-backend/internal/live"
	"parkvision-backend/internal/localize"
	"parkvision-backend/internal/model"
	"parkvision-backend/internal/mw"
	"parkvision-backend/internal/notification"
	"parkvision-backend/internal/parking"
	"parkvision-backend/internal/recognize"
	"parkvision-backend/internal/scanner"
	"parkvision-backend/internal/store"
)

func main() {
	tokenSubject := flag.String("token", "", "print an admin token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -token")
	flag.Parse()

	logger := log.New(os.Stdout, "parkvision ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if *tokenSubject != "" {
		token, err := mw.IssueToken(cfg.Server.JWTSecret, *tokenSubject, *tokenTTL)
		if err != nil {
			logger.Fatalf("failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)
	if err := appStore.UpsertLots(ctx, lotsFromConfig(cfg.Lots)); err != nil {
		logger.Fatalf("failed to sync lots: %v", err)
	}
	logger.Println("data store initialized")

	var awsCfg aws.Config
	if cfg.Recognition.Provider == "rekognition" || cfg.Ingest.QueueURL != "" {
		awsCfg, err = loadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Fatalf("failed to load AWS configuration: %v", err)
		}
	}

	plates, spots, err := newRecognizers(cfg, awsCfg)
	if err != nil {
		logger.Fatalf("failed to set up recognition: %v", err)
	}

	hub := live.NewHub()
	go hub.Start(ctx)

	gate := parking.NewGate(appStore, cfg.Security.Enabled)
	orch := parking.NewOrchestrator(appStore, gate, plates, spots, hub)
	logger.Printf("orchestrator ready (provider=%s, access control=%t)", cfg.Recognition.Provider, gate.Enabled())

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; push alerts are disabled")
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		orch.AddNotifier(pool)
	}

	fetcher := camera.NewFetcher(cfg.Camera.HTTPProxy, time.Duration(cfg.Camera.TimeoutSeconds)*time.Second)
	scannerSvc := scanner.NewService(cfg.Lots, fetcher, orch)
	go scannerSvc.Run(ctx)

	if cfg.Ingest.QueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.Ingest.Region != "" {
				o.Region = cfg.Ingest.Region
			}
		})
		consumer := ingest.NewConsumer(sqsClient, cfg.Ingest, cfg.Lots, fetcher, orch)
		go consumer.Start(ctx)
		logger.Printf("consuming camera events from %s", cfg.Ingest.QueueURL)
	}

	router := api.NewRouter(cfg, appStore, orch, hub, webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

func lotsFromConfig(lots []config.LotConfig) []model.Lot {
	out := make([]model.Lot, 0, len(lots))
	for _, l := range lots {
		out = append(out, model.Lot{ID: l.ID, Name: l.Name, TotalSpots: l.TotalSpots})
	}
	return out
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := cfg.Recognition.Rekognition.Region; region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	} else if cfg.Ingest.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Ingest.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// newRecognizers builds the plate reader and spot detector for the configured
// provider. Plates are always cropped locally before text is read.
func newRecognizers(cfg *config.Config, awsCfg aws.Config) (parking.PlateRecognizer, parking.SpotDetector, error) {
	localizer := localize.New(cfg.Recognition.ApproxEpsilon)

	switch cfg.Recognition.Provider {
	case "rekognition":
		rc := cfg.Recognition.Rekognition
		client := rekognition.NewFromConfig(awsCfg)
		plates := recognize.NewLocalizingRecognizer(localizer, recognize.NewRekognitionText(client, rc.MinConfidence))
		spots := recognize.NewRekognitionSpots(client, rc.ProjectVersionARN, rc.MinConfidence, rc.OccupiedLabels, rc.FreeLabels)
		return plates, spots, nil
	case "sidecar":
		sc := cfg.Recognition.Sidecar
		if sc.URL == "" {
			return nil, nil, errors.New("recognition.sidecar.url is required")
		}
		client := recognize.NewSidecarClient(sc.URL, time.Duration(sc.TimeoutSeconds)*time.Second)
		return recognize.NewLocalizingRecognizer(localizer, client), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown recognition provider %q", cfg.Recognition.Provider)
	}
}
