// Package seed bulk-loads patient records from a JSON file or URL.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/dentalapp/internal/metrics"
	"stealthcompany.com/dentalapp/internal/patient"
)

const progressEvery = 100

// Creator is the repository operation the loader drives.
type Creator interface {
	Create(ctx context.Context, in patient.PatientCreate) (*patient.Patient, error)
}

// Summary counts the outcome of one run.
type Summary struct {
	Total     int
	Stored    int
	Invalid   int
	Duplicate int
}

// Failed is the number of records that were skipped.
func (s Summary) Failed() int {
	return s.Invalid + s.Duplicate
}

// Loader reads a JSON array of patient payloads and creates each one.
type Loader struct {
	httpClient *http.Client
	repo       Creator
}

// NewLoader creates a loader. timeout bounds remote fetches.
func NewLoader(repo Creator, timeout time.Duration) *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: timeout},
		repo:       repo,
	}
}

// Run loads source, a local path or an http(s) URL. Records rejected by
// validation or the email uniqueness rule are logged and skipped; any other
// error aborts the run.
func (l *Loader) Run(ctx context.Context, source string) (Summary, error) {
	startTime := time.Now()
	var summary Summary

	records, err := l.read(ctx, source)
	if err != nil {
		metrics.RecordSeedRun("failed", startTime, 0, 0, 0)
		return summary, err
	}
	summary.Total = len(records)

	log.Info().Str("source", source).Int("count", summary.Total).Msg("Parsed seed file")

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			metrics.RecordSeedRun("cancelled", startTime, summary.Stored, summary.Invalid, summary.Duplicate)
			return summary, err
		}

		if err := l.store(ctx, raw); err != nil {
			switch {
			case errors.Is(err, patient.ErrValidation):
				summary.Invalid++
			case errors.Is(err, patient.ErrDuplicateEmail):
				summary.Duplicate++
			default:
				metrics.RecordSeedRun("failed", startTime, summary.Stored, summary.Invalid, summary.Duplicate)
				return summary, fmt.Errorf("record %d: %w", i, err)
			}
			log.Warn().
				Err(err).
				Int("record", i).
				Msg("Skipped seed record")
		} else {
			summary.Stored++
		}

		if (i+1)%progressEvery == 0 {
			log.Info().
				Int("processed", i+1).
				Int("total", summary.Total).
				Msg("Progress update")
		}
	}

	metrics.RecordSeedRun("success", startTime, summary.Stored, summary.Invalid, summary.Duplicate)

	log.Info().
		Str("source", source).
		Int("total", summary.Total).
		Int("stored", summary.Stored).
		Int("failed", summary.Failed()).
		Msg("Completed seeding")

	return summary, nil
}

func (l *Loader) store(ctx context.Context, raw json.RawMessage) error {
	var in patient.PatientCreate
	if err := json.Unmarshal(raw, &in); err != nil {
		return &patient.ValidationError{Fields: map[string]string{"body": err.Error()}}
	}
	_, err := l.repo.Create(ctx, in)
	return err
}

func (l *Loader) read(ctx context.Context, source string) ([]json.RawMessage, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = l.fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed data from %s: %w", source, err)
	}
	return records, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seed source returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", url, err)
	}
	return body, nil
}
