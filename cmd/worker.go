package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/coverlane/services/claims/config"
	"example.com/coverlane/services/claims/internal/cache"
	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/messaging"
	"example.com/coverlane/services/claims/internal/metrics"
	"example.com/coverlane/services/claims/internal/search"
	"example.com/coverlane/services/claims/internal/services"
	"example.com/coverlane/services/claims/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to index claim events from Azure Service Bus and reconcile document counts`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize services. The worker never publishes events, it only
	// consumes them.
	claimsService := services.NewClaimsService(db, readOnlyDB, cfg, redisCache, elasticClient, nil, metricsCollector, tracer)

	// Initialize the Service Bus queue processor
	processor, err := messaging.NewProcessor(cfg.Azure)
	if err != nil {
		return err
	}
	defer processor.Close()

	// Start the claim event processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting claim event processor")
		return processor.ProcessMessages(ctx, claimEventHandler(claimsService))
	})

	// Start the document count reconciliation cron job as a fallback for
	// submissions whose document writes partially failed
	g.Go(func() error {
		log.Info().Msg("Starting document count reconciliation cron job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				if err := claimsService.ReconcileDocumentCounts(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to reconcile document counts")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// claimEventHandler re-indexes the claim named by each event so the search
// index converges even when inline indexing at write time failed
func claimEventHandler(claimsService *services.ClaimsService) messaging.MessageHandler {
	return func(ctx context.Context, message *azservicebus.ReceivedMessage) error {
		var event messaging.ClaimEvent
		if err := json.Unmarshal(message.Body, &event); err != nil {
			return errors.Wrap(err, "failed to decode claim event")
		}
		if event.ClaimID == "" {
			return errors.New("claim event missing claim_id")
		}

		log.Info().Str("claim_id", event.ClaimID).Str("event", event.Type).Msg("Processing claim event")

		if err := claimsService.ReindexClaim(ctx, event.ClaimID); err != nil {
			if errors.Is(err, claims.ErrClaimNotFound) {
				// The claim is gone; retrying will never succeed
				log.Warn().Str("claim_id", event.ClaimID).Msg("Dropping event for missing claim")
				return nil
			}
			return err
		}
		return nil
	}
}
