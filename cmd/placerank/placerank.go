package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ts4z/placerank/config"
	"github.com/ts4z/placerank/dbutil"
	"github.com/ts4z/placerank/league"
	"github.com/ts4z/placerank/metrics"
	"github.com/ts4z/placerank/state"
	"github.com/ts4z/placerank/ts"
)

var jsonOutput bool

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Short:         "Rate multiplayer matches by finishing place",
		Use:           "placerank",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Keep stdout for results.
			log.SetOutput(cmd.ErrOrStderr())
			config.Init()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Write JSON instead of a table or CSV")

	rootCmd.AddCommand(newRateCmd(), newDBCmd(), newMatchCmd(), newPlayerCmd())
	return rootCmd
}

// openInput returns stdin unless a file was named.
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(args[0])
}

// isTerminal decides between a table for people and CSV for programs.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openStorage(ctx context.Context) (*state.DBStorage, error) {
	if !config.UseDatabase() {
		return nil, errors.New("no database configured; set db_url in ~/.placerank.yaml or PLACERANK_DB_URL")
	}
	db, err := dbutil.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return wrapDB(ctx, db)
}

// wrapDB takes ownership of db: it is closed if it can't be used.
func wrapDB(ctx context.Context, db *sql.DB) (*state.DBStorage, error) {
	storage, err := state.NewDBStorage(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

func newManager(storage state.Storage) *league.Manager {
	return league.New(league.Config{
		Storage:       storage,
		Clock:         ts.NewRealClock(),
		Options:       config.RatingOptions(),
		InitialRating: config.InitialRating(),
		Recorder:      metrics.Nop{},
	})
}
