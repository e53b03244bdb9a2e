package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/config"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pathutil"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display reconciliation statistics",
	Long: `Display statistics about ingested transactions and invoices.

Shows:
- Transaction counts per status
- Invoice counts per upload status
- Total number of recorded processing errors
- Last activity timestamp

Example:
  reconciler stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	slog.Info("Loading configuration")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate("data.root"); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Initialize PathResolver
	pathResolver := pathutil.New(pathutil.Config{
		DataRoot:     cfg.Data.Root,
		DatabasePath: cfg.Data.DatabasePath,
		InvoicesDir:  cfg.Data.InvoicesDir,
	})

	// Open database connection
	dbPath := pathResolver.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	err = db.InitializeSchema(conn)
	exitOnError(err, "failed to initialize schema")

	// Get statistics
	stats, err := db.GetStats(conn)
	exitOnError(err, "failed to get statistics")

	// Display statistics
	fmt.Println("\n=== Reconciliation Statistics ===")
	fmt.Println("Transactions:")
	for _, status := range []db.TransactionStatus{db.StatusPending, db.StatusMatched, db.StatusUploaded, db.StatusFailed} {
		fmt.Printf("  %-10s %d\n", string(status)+":", stats.Transactions[status])
	}

	fmt.Println("Invoices:")
	for _, status := range []db.UploadStatus{db.UploadPending, db.UploadUploaded, db.UploadFailed} {
		fmt.Printf("  %-10s %d\n", string(status)+":", stats.Invoices[status])
	}

	fmt.Printf("Processing errors: %d\n", stats.Errors)

	if stats.LastActivity.Valid {
		fmt.Printf("Last activity:     %s\n", stats.LastActivity.String)
	} else {
		fmt.Printf("Last activity:     (never)\n")
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
