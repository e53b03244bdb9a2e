package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/artifact"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/bank"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/cloudcfo"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/config"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/drive"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/gmail"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/health"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pathutil"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/portal"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/slack"
)

var once bool

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation pipeline",
	Long: `Run the reconciliation pipeline.

Each cycle:
1. Fetches new transactions from the bank portal
2. Stores them with pending status, skipping already-seen transactions
3. Searches Gmail, Slack, Google Drive, and vendor portals for an invoice
4. Uploads matched invoices to CloudCFO
5. Records every failure in the processing error log

Example:
  reconciler run
  reconciler run --once`,
	Run: runPipeline,
}

func init() {
	runCmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
}

func runPipeline(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Loading configuration")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	// Validate required fields
	err = cfg.Validate(
		"unionbank.url",
		"unionbank.username",
		"unionbank.password",
		"gmail.credentials_path",
		"slack.token",
		"cloudcfo.url",
		"cloudcfo.username",
		"cloudcfo.password",
		"data.root",
	)
	exitOnError(err, "invalid configuration")

	// Initialize PathResolver
	pathResolver := pathutil.New(pathutil.Config{
		DataRoot:     cfg.Data.Root,
		DatabasePath: cfg.Data.DatabasePath,
		InvoicesDir:  cfg.Data.InvoicesDir,
	})

	// Open database
	dbPath := pathResolver.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)
	err = pathResolver.EnsureParentDir(dbPath)
	exitOnError(err, "failed to create data directory")

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	err = db.InitializeSchema(conn)
	exitOnError(err, "failed to initialize schema")

	transactions := db.NewTransactionStore(conn)
	invoices := db.NewInvoiceStore(conn)
	procErrors := db.NewErrorStore(conn)

	// Downloaded invoices land under the invoices directory.
	artifacts := artifact.NewStore(pathResolver)

	// Invoice sources, in fallback order.
	gmailClient, err := gmail.NewClient(ctx, gmail.Config{
		CredentialsPath: cfg.Gmail.CredentialsPath,
		TokenPath:       cfg.Gmail.TokenPath,
	})
	exitOnError(err, "failed to initialize gmail client")

	gmailSource := gmail.NewSource(gmailClient, artifacts)

	slackSource := slack.NewClient(slack.ClientConfig{
		APIURL: cfg.Slack.APIURL,
		Token:  cfg.Slack.Token,
	}, artifacts)

	driveSource, err := drive.NewSource(ctx, gmailClient.HTTPClient(), artifacts)
	exitOnError(err, "failed to initialize drive client")

	portalConfig, err := portal.LoadConfig(cfg.Portal.ConfigPath)
	exitOnError(err, "failed to load portal config")
	portalSource := portal.NewScraper(portalConfig, artifacts, slog.Default())

	sources := []pipeline.InvoiceSource{gmailSource, slackSource, driveSource, portalSource}

	// Pipeline components.
	retry := pipeline.RetryPolicy{
		MaxAttempts:  cfg.Pipeline.RetryMaxAttempts,
		InitialDelay: cfg.Pipeline.RetryInitialDelay,
		MaxDelay:     cfg.Pipeline.RetryMaxDelay,
	}

	matcher := pipeline.NewMatcher(sources, retry, slog.Default())

	uploader := cloudcfo.NewUploader(cloudcfo.Config{
		URL:      cfg.CloudCFO.URL,
		Username: cfg.CloudCFO.Username,
		Password: cfg.CloudCFO.Password,
	}, slog.Default())

	processor := pipeline.NewProcessor(transactions, invoices, procErrors, matcher, uploader, retry, slog.Default())

	bankSource := bank.NewScraper(bank.Config{
		URL:      cfg.Bank.URL,
		Username: cfg.Bank.Username,
		Password: cfg.Bank.Password,
	}, slog.Default())

	orchestrator := pipeline.NewOrchestrator(bankSource, transactions, processor, cfg.Pipeline.PollInterval, slog.Default())

	// Health endpoint runs beside the pipeline.
	healthServer := health.NewServer(cfg.Health.Port, cfg.Environment, slog.Default())
	go func() {
		if err := healthServer.Start(); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("health server shutdown error", "error", err)
		}
	}()

	if once {
		slog.Info("Running a single reconciliation cycle")
		orchestrator.RunCycle(ctx)
		return
	}

	slog.Info("Starting reconciliation loop", "poll_interval", cfg.Pipeline.PollInterval)
	if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
		exitOnError(err, "reconciliation loop failed")
	}

	slog.Info("Reconciler stopped")
}
