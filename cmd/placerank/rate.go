package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ts4z/placerank/config"
	"github.com/ts4z/placerank/ocsv"
	"github.com/ts4z/placerank/rating"
	"github.com/ts4z/placerank/textutil"
)

type rateFlags struct {
	explain   bool
	verbose   bool
	maxRating float64
	tolerance float64
}

func newRateCmd() *cobra.Command {
	f := &rateFlags{}
	cmd := &cobra.Command{
		Use:   "rate [file]",
		Short: "Rate one match from an id,rating,rank CSV (stdin if no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRate(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.explain, "explain", false, "Show expected rank, reconciled rank and performance rating")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Trace every intermediate value to stderr")
	cmd.Flags().Float64Var(&f.maxRating, "max-rating", rating.DefaultMaxRating, "Top of the performance rating search")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", rating.DefaultTolerance, "Stop searching once the range is this narrow")
	return cmd
}

func runRate(cmd *cobra.Command, args []string, f *rateFlags) error {
	in, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()
	ps, err := ocsv.ReadParticipants(in)
	if err != nil {
		return fmt.Errorf("reading participants: %w", err)
	}

	opts := config.RatingOptions()
	if cmd.Flags().Changed("max-rating") {
		opts.MaxRating = f.maxRating
	}
	if cmd.Flags().Changed("tolerance") {
		opts.Tolerance = f.tolerance
	}
	if f.verbose || config.Verbose() {
		opts.Trace = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	e, err := rating.New(ps, opts)
	if err != nil {
		return err
	}
	results, err := e.Calculate()
	if err != nil {
		return err
	}
	rated := make([]rating.Participant, len(ps))
	for i, p := range ps {
		rated[i] = results[p.ID]
	}
	var breakdown []rating.Breakdown
	if f.explain {
		breakdown = e.Breakdown()
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return writeRatedJSON(out, ps, rated, breakdown)
	case isTerminal(out) || f.explain:
		return writeRatedTable(out, ps, rated, breakdown)
	default:
		return ocsv.WriteResults(out, rated)
	}
}

type ratedJSON struct {
	ID                int64   `json:"id"`
	Rank              int     `json:"rank"`
	RatingBefore      float64 `json:"ratingBefore"`
	Rating            float64 `json:"rating"`
	Change            float64 `json:"change"`
	ExpectedRank      string  `json:"expectedRank,omitempty"`
	ReconciledRank    string  `json:"reconciledRank,omitempty"`
	PerformanceRating *int64  `json:"performanceRating,omitempty"`
}

func writeRatedJSON(w io.Writer, before, after []rating.Participant, breakdown []rating.Breakdown) error {
	out := make([]ratedJSON, len(after))
	for i, p := range after {
		out[i] = ratedJSON{
			ID:           p.ID,
			Rank:         p.MatchRank,
			RatingBefore: before[i].CurrentRating,
			Rating:       p.CurrentRating,
			Change:       p.ChangeScore,
		}
		if breakdown != nil {
			b := breakdown[i]
			out[i].ExpectedRank = b.ExpectedRank.StringFixed(4)
			out[i].ReconciledRank = b.ReconciledRank.StringFixed(4)
			out[i].PerformanceRating = &b.PerformanceRating
		}
	}
	return writeJSON(w, out)
}

func writeRatedTable(w io.Writer, before, after []rating.Participant, breakdown []rating.Breakdown) error {
	tw := newTable(w)
	if breakdown != nil {
		fmt.Fprintf(tw, "id\tplace\tbefore\tafter\tchange\texpected\treconciled\tperformance\n")
	} else {
		fmt.Fprintf(tw, "id\tplace\tbefore\tafter\tchange\n")
	}
	for i, p := range after {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s",
			p.ID,
			textutil.FormatPlace(p.MatchRank),
			textutil.FormatRating(before[i].CurrentRating),
			textutil.FormatRating(p.CurrentRating),
			textutil.FormatChange(p.ChangeScore))
		if breakdown != nil {
			b := breakdown[i]
			fmt.Fprintf(tw, "\t%s\t%s\t%d", b.ExpectedRank.StringFixed(4), b.ReconciledRank.StringFixed(4), b.PerformanceRating)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
