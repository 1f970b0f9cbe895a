package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velo-ingest/database"
	usecase "velo-ingest/internal/usecase/task"
)

func TestToFetchRecord(t *testing.T) {
	record, err := ToFetchRecord(usecase.FetchResult{
		Source:     "paris",
		Date:       "2024-06-01",
		Outcome:    usecase.OutcomeSaved,
		StatusCode: 200,
		Path:       "data/raw_data/2024-06-01/paris_realtime_bicycle_data.json",
		Bytes:      2048,
		Elapsed:    1234567 * time.Microsecond,
	})

	require.Nil(t, err)
	assert.Equal(t, database.Date{Year: 2024, Month: 6, Day: 1}, record.Date)
	assert.Equal(t, "paris", record.Source)
	assert.Equal(t, "saved", record.Outcome)
	assert.Equal(t, 200, record.StatusCode)
	assert.Equal(t, int64(2048), record.Bytes)
	assert.True(t, decimal.RequireFromString("1.235").Equal(record.ElapsedSeconds), record.ElapsedSeconds.String())
}

func TestToFetchRecord_InvalidDate(t *testing.T) {
	_, err := ToFetchRecord(usecase.FetchResult{Source: "paris", Date: "yesterday"})

	assert.NotNil(t, err)
}

func TestLedger_Record(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "run-1")

	var got []database.FetchRecord
	l := &Ledger{upsert: func(upsertCtx context.Context, _ database.DB, records []database.FetchRecord) error {
		assert.Equal(t, "run-1", upsertCtx.Value(ctxKey{}))
		got = append(got, records...)
		return nil
	}}

	err := l.Record(ctx, usecase.FetchResult{
		Source:     "communes",
		Date:       "2024-06-01",
		Outcome:    usecase.OutcomeHTTPError,
		StatusCode: 502,
		Message:    "Bad Gateway",
	})

	require.Nil(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "http_error", got[0].Outcome)
	assert.Equal(t, "Bad Gateway", got[0].Message)
}

func TestLedger_Record_Error(t *testing.T) {
	l := &Ledger{upsert: func(context.Context, database.DB, []database.FetchRecord) error {
		return errors.New("connection reset")
	}}

	err := l.Record(context.Background(), usecase.FetchResult{Source: "paris", Date: "2024-06-01"})

	assert.EqualError(t, err, "connection reset")
}
