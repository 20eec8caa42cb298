/*
Package ocsv reads and writes the CSV files the command line tool works
with.

A participants file has one line per competitor:

	# id,rating,rank
	101,1500,1
	102,1620.5,2

An entries file drops the rating, since the league already knows it:

	playerId,rank
	101,1
	102,2

A header line is optional in both, as are blank lines and lines starting
with '#'.  Output is always written with a header.
*/
package ocsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ts4z/placerank/model"
	"github.com/ts4z/placerank/rating"
	"github.com/ts4z/placerank/textutil"
)

var ErrEmpty = errors.New("no records in CSV")

// readRecords returns every data record with its line number, dropping a
// leading header.  A header is any first record whose first field is not a
// number.
func readRecords(r io.Reader, fields int) ([][]string, []int, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var records [][]string
	var lines []int
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if first {
			first = false
			if _, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64); err != nil {
				continue
			}
		}
		if len(record) != fields {
			return nil, nil, fmt.Errorf("line %d: want %d fields, got %d", line, fields, len(record))
		}
		records = append(records, record)
		lines = append(lines, line)
	}
	if len(records) == 0 {
		return nil, nil, ErrEmpty
	}
	return records, lines, nil
}

func parseID(s string, line int) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad id %q", line, s)
	}
	return id, nil
}

func parseRank(s string, line int) (int, error) {
	rank, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("line %d: bad rank %q", line, s)
	}
	return rank, nil
}

// ReadParticipants reads id,rating,rank lines.  Values are not checked
// beyond parsing; the engine does that.
func ReadParticipants(r io.Reader) ([]rating.Participant, error) {
	records, lines, err := readRecords(r, 3)
	if err != nil {
		return nil, err
	}
	out := make([]rating.Participant, len(records))
	for i, rec := range records {
		id, err := parseID(rec[0], lines[i])
		if err != nil {
			return nil, err
		}
		rt, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad rating %q", lines[i], rec[1])
		}
		rank, err := parseRank(rec[2], lines[i])
		if err != nil {
			return nil, err
		}
		out[i] = rating.Participant{ID: id, CurrentRating: rt, MatchRank: rank}
	}
	return out, nil
}

// ReadEntries reads playerId,rank lines.
func ReadEntries(r io.Reader) ([]model.Entry, error) {
	records, lines, err := readRecords(r, 2)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entry, len(records))
	for i, rec := range records {
		id, err := parseID(rec[0], lines[i])
		if err != nil {
			return nil, err
		}
		rank, err := parseRank(rec[1], lines[i])
		if err != nil {
			return nil, err
		}
		out[i] = model.Entry{PlayerID: id, Rank: rank}
	}
	return out, nil
}

// WriteResults writes id,rank,rating,change for rated participants, where
// rating is the new rating.
func WriteResults(w io.Writer, ps []rating.Participant) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "rank", "rating", "change"})
	for _, p := range ps {
		cw.Write([]string{
			strconv.FormatInt(p.ID, 10),
			strconv.Itoa(p.MatchRank),
			textutil.FormatRating(p.CurrentRating),
			textutil.FormatChange(p.ChangeScore),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatch writes a stored match in the same shape as WriteResults.
func WriteMatch(w io.Writer, m *model.Match) error {
	ps := make([]rating.Participant, len(m.Results))
	for i, r := range m.Results {
		ps[i] = rating.Participant{ID: r.PlayerID, MatchRank: r.Rank, CurrentRating: r.RatingAfter, ChangeScore: r.ChangeScore}
	}
	return WriteResults(w, ps)
}
