package usecase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"

	"velo-ingest/internal/source"
)

type FetchDataTaskUseCase struct {
	client   Getter
	store    Saver
	catalog  *source.Catalog
	recorder Recorder
	out      io.Writer
	logger   log.Interface
}

func NewFetchDataTaskUseCase(
	client Getter,
	store Saver,
	catalog *source.Catalog,
	recorder Recorder,
	out io.Writer,
	logger log.Interface,
) *FetchDataTaskUseCase {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.Log
	}

	return &FetchDataTaskUseCase{
		client:   client,
		store:    store,
		catalog:  catalog,
		recorder: recorder,
		out:      out,
		logger:   logger,
	}
}

// FetchBicycles downloads every bicycle source in catalog order. A failing
// source never stops the others; only filesystem errors abort the run.
func (uc *FetchDataTaskUseCase) FetchBicycles(ctx context.Context) (*FetchDataResponse, error) {
	return uc.fetchAll(ctx, uc.catalog.Bicycles(), false)
}

func (uc *FetchDataTaskUseCase) FetchCommunes(ctx context.Context) (*FetchDataResponse, error) {
	return uc.FetchSource(ctx, &FetchSourceRequest{Name: source.Communes})
}

func (uc *FetchDataTaskUseCase) FetchSource(ctx context.Context, req *FetchSourceRequest) (*FetchDataResponse, error) {
	s, err := uc.catalog.Lookup(req.Name)
	if err != nil {
		return nil, err
	}

	return uc.fetchAll(ctx, []source.Source{s}, req.SkipStatusCheck)
}

// FetchAll downloads the bicycle sources followed by every other source.
func (uc *FetchDataTaskUseCase) FetchAll(ctx context.Context) (*FetchDataResponse, error) {
	sources := uc.catalog.Bicycles()
	for _, s := range uc.catalog.All() {
		if !s.IsBicycle() {
			sources = append(sources, s)
		}
	}

	return uc.fetchAll(ctx, sources, false)
}

func (uc *FetchDataTaskUseCase) fetchAll(ctx context.Context, sources []source.Source, skipStatusCheck bool) (*FetchDataResponse, error) {
	resp := &FetchDataResponse{}
	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		result, err := uc.fetch(ctx, s, skipStatusCheck)
		if err != nil {
			return resp, err
		}

		resp.Results = append(resp.Results, result)

		if err := uc.recorder.Record(ctx, result); err != nil {
			uc.logger.WithError(err).WithField("source", s.Name).Warn("failed to record fetch result")
		}
	}

	if len(sources) > 1 {
		fmt.Fprintf(uc.out, "%d sources: %d saved, %d failed\n", len(resp.Results), resp.Saved(), resp.Failed())
	}

	return resp, nil
}

func (uc *FetchDataTaskUseCase) fetch(ctx context.Context, s source.Source, skipStatusCheck bool) (FetchResult, error) {
	logger := uc.logger.WithFields(log.Fields{"source": s.Name, "url": s.URL})
	logger.Debug("fetching")

	start := time.Now()
	result := FetchResult{Source: s.Name, Date: uc.store.Today()}

	resp, err := uc.client.Get(ctx, s.URL)
	result.Elapsed = time.Since(start)
	if err != nil && ctx.Err() != nil {
		return result, ctx.Err()
	}
	if err != nil {
		logger.WithError(err).Error("connection failed")
		fmt.Fprintf(uc.out, "Error: connection to %s failed: %v\n", s.Name, err)

		result.Outcome = OutcomeConnectionError
		result.Message = err.Error()
		return result, nil
	}

	result.StatusCode = resp.StatusCode()
	if !resp.IsOK() {
		if !skipStatusCheck {
			fmt.Fprintf(uc.out, "Error: could not retrieve %s data (status code: %d)\n", s.Name, resp.StatusCode())

			result.Outcome = OutcomeHTTPError
			result.Message = http.StatusText(resp.StatusCode())
			return result, nil
		}

		logger.WithField("status", resp.StatusCode()).Warn("saving body of a non-200 response")
	}

	artifact, err := uc.store.Save(resp.Body, s.FileName)
	if err != nil {
		return result, fmt.Errorf("failed to save %s data: %w", s.Name, err)
	}

	result.Outcome = OutcomeSaved
	result.Date = artifact.Date
	result.Path = artifact.Path
	result.Bytes = int64(len(resp.Body))
	logger.WithFields(log.Fields{"path": artifact.Path, "bytes": result.Bytes}).Debug("saved")
	fmt.Fprintf(uc.out, "%s data retrieved (%s)\n", s.Name, artifact.Path)

	return result, nil
}
