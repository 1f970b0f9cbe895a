package usecase

import (
	"context"
	"time"

	"velo-ingest/internal/api/opendata"
	"velo-ingest/internal/rawdata"
)

type Outcome string

const (
	OutcomeSaved           Outcome = "saved"
	OutcomeHTTPError       Outcome = "http_error"
	OutcomeConnectionError Outcome = "connection_error"
)

type Getter interface {
	Get(ctx context.Context, rawURL string) (*opendata.Response, error)
}

type Saver interface {
	Save(payload []byte, fileName string) (rawdata.Artifact, error)
	Today() string
}

// Recorder receives every fetch result. Errors are reported but never
// abort a run.
type Recorder interface {
	Record(ctx context.Context, result FetchResult) error
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, FetchResult) error {
	return nil
}

type FetchSourceRequest struct {
	Name            string
	SkipStatusCheck bool
}

type FetchResult struct {
	Source     string
	Date       string
	Outcome    Outcome
	StatusCode int
	Path       string
	Bytes      int64
	Elapsed    time.Duration
	Message    string
}

type FetchDataResponse struct {
	Results []FetchResult
}

func (r *FetchDataResponse) Saved() int {
	return r.count(OutcomeSaved)
}

func (r *FetchDataResponse) Failed() int {
	return len(r.Results) - r.Saved()
}

func (r *FetchDataResponse) count(outcome Outcome) int {
	n := 0
	for _, result := range r.Results {
		if result.Outcome == outcome {
			n++
		}
	}

	return n
}
