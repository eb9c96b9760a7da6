package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/database/postgres"
)

var (
	journalKind  string
	journalLimit int
)

// journalCmd reads the change journal
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the latest journaled changes",
	Long: `Lists the most recent journal entries of one kind from PostgreSQL.

Examples:
  go run ./cmd/desk journal --kind order_update --limit 20`,
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().StringVar(&journalKind, "kind", string(market.EventOrderUpdate), "event type")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "max entries")
}

func runJournal(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect journal database: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewJournalRepository(pool.Pool)
	entries, err := repo.Latest(ctx, market.EventType(journalKind), journalLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tKEY\tPAYLOAD")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.At.Format("2006-01-02 15:04:05.000"), e.Key, e.Payload)
	}
	return w.Flush()
}
