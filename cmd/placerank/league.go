package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ts4z/placerank/config"
	"github.com/ts4z/placerank/model"
	"github.com/ts4z/placerank/ocsv"
	"github.com/ts4z/placerank/textutil"
)

var (
	sinceArg    string
	matchLimit  int
	playerLimit int
	playerID    int64
	playerNick  string
	startRating float64
)

func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Short: "Manage the database",
		Use:   "db",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create tables and indexes that don't exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			if err := storage.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
	dbCmd.AddCommand(initCmd)
	return dbCmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %q", s)
	}
	return id, nil
}

func writeMatch(w io.Writer, m *model.Match) error {
	switch {
	case jsonOutput:
		return writeJSON(w, m)
	case !isTerminal(w):
		return ocsv.WriteMatch(w, m)
	}
	if m.MatchID != 0 {
		fmt.Fprintf(w, "match %d (%v) played %v\n\n", m.MatchID, m.MatchKey, m.PlayedAt.Local().Format(time.RFC1123))
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "player\tplace\tbefore\tafter\tchange\tperformance\n")
	for _, r := range m.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			r.PlayerID,
			textutil.FormatPlace(r.Rank),
			textutil.FormatRating(r.RatingBefore),
			textutil.FormatRating(r.RatingAfter),
			textutil.FormatChange(r.ChangeScore),
			r.PerformanceRating)
	}
	return tw.Flush()
}

func newMatchCmd() *cobra.Command {
	matchCmd := &cobra.Command{
		Short: "Rate, record and look up league matches",
		Use:   "match",
	}

	rateEntries := func(record bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()
			entries, err := ocsv.ReadEntries(in)
			if err != nil {
				return fmt.Errorf("reading entries: %w", err)
			}
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()

			manager := newManager(storage)
			var m *model.Match
			if record {
				m, err = manager.Record(ctx, entries)
			} else {
				m, err = manager.Preview(ctx, entries)
			}
			if err != nil {
				return err
			}
			return writeMatch(cmd.OutOrStdout(), m)
		}
	}

	recordCmd := &cobra.Command{
		Use:   "record [file]",
		Short: "Rate a playerId,rank CSV against stored ratings and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rateEntries(true),
	}

	previewCmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Show what recording a match would do, without saving it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rateEntries(false),
	}

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a recorded match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			m, err := storage.FetchMatch(ctx, id)
			if err != nil {
				return err
			}
			return writeMatch(cmd.OutOrStdout(), m)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent matches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			since, err := textutil.ParseSince(time.Now(), sinceArg)
			if err != nil {
				return err
			}
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			slugs, err := storage.FetchMatchesSince(ctx, since, matchLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, slugs)
			}
			tw := newTable(out)
			fmt.Fprintf(tw, "id\tplayed\tplayers\tkey\n")
			for _, s := range slugs {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%v\n", s.MatchID, s.PlayedAt.Local().Format(time.DateTime), s.Participants, s.MatchKey)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().StringVar(&sinceArg, "since", "30d", "How far back to look: an age like 36h, 30d or 2w, or an RFC 3339 time")
	listCmd.Flags().IntVar(&matchLimit, "limit", 50, "Most matches to list")

	matchCmd.AddCommand(recordCmd, previewCmd, showCmd, listCmd)
	return matchCmd
}

func writePlayers(w io.Writer, offset int, players []*model.Player) error {
	if jsonOutput {
		return writeJSON(w, players)
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "#\tid\tnick\trating\tmatches\tlast played\n")
	for i, p := range players {
		last := "never"
		if p.LastPlayedAt != nil {
			last = p.LastPlayedAt.Local().Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\n", offset+i+1, p.PlayerID, p.Nick, textutil.FormatRating(p.Rating), p.MatchesPlayed, last)
	}
	return tw.Flush()
}

func newPlayerCmd() *cobra.Command {
	playerCmd := &cobra.Command{
		Short: "Manage league players",
		Use:   "player",
	}

	var offset int

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			p, err := storage.FetchPlayer(ctx, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			return writePlayers(cmd.OutOrStdout(), 0, []*model.Player{p})
		},
	}

	topCmd := &cobra.Command{
		Use:   "top",
		Short: "List players by rating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			players, err := storage.FetchLeaderboard(ctx, offset, playerLimit)
			if err != nil {
				return err
			}
			return writePlayers(cmd.OutOrStdout(), offset, players)
		},
	}
	topCmd.Flags().IntVar(&playerLimit, "limit", 20, "Most players to list")
	topCmd.Flags().IntVar(&offset, "offset", 0, "Skip this many players first")

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a player before their first match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("rating") {
				startRating = config.InitialRating()
			}
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			p := &model.Player{PlayerID: playerID, Nick: playerNick, Rating: startRating}
			if err := storage.CreatePlayer(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added player %d (%s) at %s\n", p.PlayerID, p.Nick, textutil.FormatRating(p.Rating))
			return nil
		},
	}
	addCmd.Flags().Int64Var(&playerID, "id", 0, "Player id")
	addCmd.Flags().StringVar(&playerNick, "nick", "", "Player's nick")
	addCmd.Flags().Float64Var(&startRating, "rating", 0, "Starting rating (default initial_rating)")
	addCmd.MarkFlagRequired("id")

	renameCmd := &cobra.Command{
		Use:   "rename [id] [nick]",
		Short: "Change a player's nick",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			return storage.RenamePlayer(ctx, id, args[1])
		},
	}

	playerCmd.AddCommand(showCmd, topCmd, addCmd, renameCmd)
	return playerCmd
}
