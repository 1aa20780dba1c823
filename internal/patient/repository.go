package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/metrics"
)

// Page limits for List.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams selects a page of records.
type ListParams struct {
	Skip   int
	Limit  int
	Search string
}

// Repository implements the patient operations on top of a Store.
type Repository struct {
	store Store
	clock Clock
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock replaces the wall clock used for created_at and updated_at.
func WithClock(c Clock) Option {
	return func(r *Repository) {
		r.clock = c
	}
}

// WithTimeSource drives the default monotonic clock from now.
func WithTimeSource(now func() time.Time) Option {
	return func(r *Repository) {
		r.clock = newMonotonicClock(now)
	}
}

// NewRepository returns a Repository backed by store.
func NewRepository(store Store, opts ...Option) *Repository {
	r := &Repository{store: store, clock: newMonotonicClock(nil)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates in, assigns a fresh id and stamps created_at and
// updated_at with the same instant.
func (r *Repository) Create(ctx context.Context, in PatientCreate) (p *Patient, err error) {
	defer observe(ctx, "create", time.Now(), &err, nil)

	if err := in.Validate(); err != nil {
		return nil, err
	}

	created := in.newPatient(identifier.New(), r.clock.Now())
	if err := r.store.Insert(ctx, created.Document()); err != nil {
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("patient_id", created.ID.Hex()).
		Msg("Patient created")
	return &created, nil
}

// Get returns the record with id. The flag is false when no record exists.
func (r *Repository) Get(ctx context.Context, id identifier.ID) (p *Patient, found bool, err error) {
	defer observe(ctx, "get", time.Now(), &err, &found)

	doc, found, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load patient %s: %w", id.Hex(), err)
	}
	if !found {
		return nil, false, nil
	}

	decoded, err := DecodeDocument(doc)
	if err != nil {
		return nil, false, err
	}
	return &decoded, true, nil
}

// List returns up to Limit records after skipping Skip, optionally filtered
// by a case-insensitive substring of first name, last name or email. Stored
// records that cannot be decoded are logged and left out of the page.
func (r *Repository) List(ctx context.Context, params ListParams) (out []Patient, err error) {
	defer observe(ctx, "list", time.Now(), &err, nil)

	errs := &ValidationError{}
	if params.Skip < 0 {
		errs.add("skip", "must be greater than or equal to 0")
	}
	if params.Limit < 1 || params.Limit > MaxLimit {
		errs.add("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	if err := errs.orNil(); err != nil {
		return nil, err
	}

	docs, err := r.store.Find(ctx, Query{
		Search: strings.TrimSpace(params.Search),
		Skip:   params.Skip,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	logger := zerolog.Ctx(ctx)
	out = make([]Patient, 0, len(docs))
	for _, doc := range docs {
		p, err := DecodeDocument(doc)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping malformed patient record")
			metrics.RecordSkippedRecord()
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Update applies patch to the record with id. The flag is false only when
// no record with id exists; a patch that changes nothing still refreshes
// updated_at.
func (r *Repository) Update(ctx context.Context, id identifier.ID, patch PatientUpdate) (p *Patient, found bool, err error) {
	defer observe(ctx, "update", time.Now(), &err, &found)

	if err := patch.Validate(); err != nil {
		return nil, false, err
	}

	doc, found, err := r.store.Apply(ctx, id, patch.Changes(r.clock.Now()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to update patient %s: %w", id.Hex(), err)
	}
	if !found {
		return nil, false, nil
	}

	updated, err := DecodeDocument(doc)
	if err != nil {
		return nil, false, err
	}

	zerolog.Ctx(ctx).Info().
		Str("patient_id", id.Hex()).
		Msg("Patient updated")
	return &updated, true, nil
}

// Delete removes the record with id and reports whether one was removed.
func (r *Repository) Delete(ctx context.Context, id identifier.ID) (deleted bool, err error) {
	defer observe(ctx, "delete", time.Now(), &err, &deleted)

	deleted, err = r.store.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete patient %s: %w", id.Hex(), err)
	}
	if deleted {
		zerolog.Ctx(ctx).Info().
			Str("patient_id", id.Hex()).
			Msg("Patient deleted")
	}
	return deleted, nil
}

// EnsureIndexes creates the patient indexes. It is safe to call repeatedly.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if err := r.store.EnsureIndexes(ctx, Indexes); err != nil {
		return fmt.Errorf("failed to create patient indexes: %w", err)
	}
	zerolog.Ctx(ctx).Info().Int("count", len(Indexes)).Msg("Patient indexes ensured")
	return nil
}

// Ping checks that the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func observe(ctx context.Context, op string, start time.Time, errp *error, found *bool) {
	elapsed := time.Since(start)
	result := outcome(*errp, found)
	metrics.RecordPatientOperation(op, result, elapsed)

	logger := zerolog.Ctx(ctx)
	if result == "error" {
		logger.Error().Err(*errp).Str("operation", op).Dur("duration", elapsed).Msg("Patient store operation failed")
		return
	}
	logger.Debug().Str("operation", op).Str("outcome", result).Dur("duration", elapsed).Msg("Patient operation")
}

func outcome(err error, found *bool) string {
	switch {
	case err == nil && found != nil && !*found:
		return "not_found"
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	default:
		return "error"
	}
}
