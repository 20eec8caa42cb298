package main

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PLACERANK_DB_URL", "")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const match = "id,rating,rank\n1,1500,1\n2,1500,2\n3,1800,3\n"

func TestRateWritesCSVWhenNotATerminal(t *testing.T) {
	out, _, err := run(t, match, "rate")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err, out)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"id", "rank", "rating", "change"}, records[0])

	byID := map[string][]string{}
	for _, rec := range records[1:] {
		byID[rec[0]] = rec
	}
	require.Len(t, byID, 3)
	assert.Equal(t, "1", byID["1"][1])
	assert.Equal(t, "3", byID["3"][1])

	change := func(id string) float64 {
		c, err := strconv.ParseFloat(byID[id][3], 64)
		require.NoError(t, err, byID[id])
		return c
	}
	assert.True(t, strings.HasPrefix(byID["1"][3], "+"), byID["1"])
	assert.Greater(t, change("1"), 0.0)
	assert.Less(t, change("3"), 0.0)

	after, err := strconv.ParseFloat(byID["1"][2], 64)
	require.NoError(t, err)
	assert.InDelta(t, 1500+change("1"), after, 0.11)
}

func TestRateJSONExplain(t *testing.T) {
	out, _, err := run(t, match, "rate", "--json", "--explain")
	require.NoError(t, err)

	var rated []ratedJSON
	require.NoError(t, json.Unmarshal([]byte(out), &rated), out)
	require.Len(t, rated, 3)
	assert.Equal(t, 1500.0, rated[0].RatingBefore)
	assert.NotEmpty(t, rated[0].ExpectedRank)
	require.NotNil(t, rated[0].PerformanceRating)
}

func TestRateVerboseTracesToStderr(t *testing.T) {
	_, stderr, err := run(t, match, "rate", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stderr, "performance rating")
}

func TestRateRejectsBadInput(t *testing.T) {
	_, _, err := run(t, "1,1500,1\n1,1500,2\n", "rate")
	assert.Error(t, err)

	_, _, err = run(t, "1,1500\n", "rate")
	assert.Error(t, err)

	_, _, err = run(t, match, "rate", "--tolerance=-1")
	assert.Error(t, err)
}

func TestLeagueCommandsNeedADatabase(t *testing.T) {
	_, _, err := run(t, "", "player", "top")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database configured")
}

type refusingDriver struct{}

func (refusingDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("connection refused")
}

func init() {
	sql.Register("placerank-refusing", refusingDriver{})
}

func TestUnreachableDatabaseIsClosed(t *testing.T) {
	db, err := sql.Open("placerank-refusing", "")
	require.NoError(t, err)

	_, err = wrapDB(context.Background(), db)
	require.Error(t, err)
	assert.ErrorContains(t, db.Ping(), "database is closed")
}
