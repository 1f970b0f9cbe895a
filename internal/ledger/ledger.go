// Package ledger stores fetch results in the database, one row per day and source.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"velo-ingest/database"
	usecase "velo-ingest/internal/usecase/task"
)

type Ledger struct {
	db     database.DB
	upsert func(ctx context.Context, db database.DB, records []database.FetchRecord) error
}

func New(db database.DB) *Ledger {
	return &Ledger{db: db, upsert: database.UpsertToFetchRecords}
}

func (l *Ledger) Record(ctx context.Context, result usecase.FetchResult) error {
	record, err := ToFetchRecord(result)
	if err != nil {
		return err
	}

	return l.upsert(ctx, l.db, []database.FetchRecord{record})
}

func ToFetchRecord(result usecase.FetchResult) (database.FetchRecord, error) {
	date, err := database.NewDateFromString(result.Date)
	if err != nil {
		return database.FetchRecord{}, err
	}

	return database.FetchRecord{
		Date:           date,
		Source:         result.Source,
		Outcome:        string(result.Outcome),
		StatusCode:     result.StatusCode,
		FilePath:       result.Path,
		Bytes:          result.Bytes,
		ElapsedSeconds: decimal.NewFromFloat(result.Elapsed.Seconds()).Round(3),
		Message:        result.Message,
	}, nil
}
