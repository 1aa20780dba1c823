package patient_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/memstore"
	"stealthcompany.com/dentalapp/internal/patient"
)

// frozenTime returns the same instant on every call so the repository
// clock has to advance on its own.
func frozenTime() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func newRepo(t *testing.T) (*patient.Repository, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	repo := patient.NewRepository(store, patient.WithTimeSource(frozenTime))
	require.NoError(t, repo.EnsureIndexes(context.Background()))
	return repo, store
}

func ada() patient.PatientCreate {
	return patient.PatientCreate{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		DateOfBirth:   patient.NewTimestamp(time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)),
		ContactNumber: "555-0100",
		Email:         "ada@example.com",
		Address: &patient.Address{
			Street:     "12 St James's Square",
			City:       "London",
			State:      "London",
			PostalCode: "SW1Y 4JH",
		},
	}
}

func named(first, last, email string) patient.PatientCreate {
	in := ada()
	in.FirstName = first
	in.LastName = last
	in.Email = email
	return in
}

func TestCreateAssignsIdentityAndTimestamps(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	assert.NotEqual(t, identifier.Nil, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.NotNil(t, created.MedicalHistory)
	assert.Empty(t, created.MedicalHistory)
	assert.Equal(t, 1, store.Len())

	fetched, found, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, *created, *fetched)
}

func TestCreateRejectsInvalidWithoutWriting(t *testing.T) {
	repo, store := newRepo(t)

	in := ada()
	in.FirstName = ""
	_, err := repo.Create(context.Background(), in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, patient.ErrValidation))
	assert.Equal(t, 0, store.Len())
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	_, err = repo.Create(ctx, named("Augusta", "King", "ada@example.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, patient.ErrDuplicateEmail))
	assert.Equal(t, 1, store.Len())
}

func TestCreateAllowsManyWithoutEmail(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, named("Ada", "Lovelace", ""))
	require.NoError(t, err)
	_, err = repo.Create(ctx, named("Charles", "Babbage", ""))
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
}

func TestGetUnknownIDIsAbsent(t *testing.T) {
	repo, _ := newRepo(t)

	p, found, err := repo.Get(context.Background(), identifier.New())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, p)
}

func TestListPagingAndSearch(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	var ids []identifier.ID
	for i := 0; i < 5; i++ {
		p, err := repo.Create(ctx, named(fmt.Sprintf("Name%d", i), "Smith", fmt.Sprintf("p%d@example.com", i)))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	_, err := repo.Create(ctx, named("Grace", "Hopper", "GRACE@Navy.mil"))
	require.NoError(t, err)

	all, err := repo.List(ctx, patient.ListParams{Skip: 0, Limit: 100, Search: ""})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	page, err := repo.List(ctx, patient.ListParams{Skip: 1, Limit: 2, Search: ""})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	beyond, err := repo.List(ctx, patient.ListParams{Skip: 50, Limit: 10, Search: ""})
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)

	byEmail, err := repo.List(ctx, patient.ListParams{Skip: 0, Limit: 100, Search: "navy"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "Grace", byEmail[0].FirstName)

	byName, err := repo.List(ctx, patient.ListParams{Skip: 0, Limit: 100, Search: "  SMITH "})
	require.NoError(t, err)
	assert.Len(t, byName, 5)

	none, err := repo.List(ctx, patient.ListParams{Skip: 0, Limit: 100, Search: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListSearchIsLiteral(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, named("Ada", "Lovelace", "ada@example.com"))
	require.NoError(t, err)

	found, err := repo.List(ctx, patient.ListParams{Skip: 0, Limit: 10, Search: ".*"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListRejectsBadPaging(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		skip  int
		limit int
		field string
	}{
		{name: "Negative skip", skip: -1, limit: 10, field: "skip"},
		{name: "Zero limit", skip: 0, limit: 0, field: "limit"},
		{name: "Limit above maximum", skip: 0, limit: 101, field: "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.List(ctx, patient.ListParams{Skip: tt.skip, Limit: tt.limit, Search: ""})
			var verr *patient.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestListSkipsMalformedRecords(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	good, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	legacy := identifier.New()
	store.Put(legacy, patient.Document{
		patient.FieldFirstName:     "Legacy",
		patient.FieldLastName:      "Record",
		patient.FieldDateOfBirth:   "1970-01-01T00:00:00Z",
		patient.FieldContactNumber: "555-0000",
		patient.FieldAddress: patient.Document{
			patient.FieldStreet: "1 Old Rd", patient.FieldCity: "Oldtown",
			patient.FieldState: "OT", patient.FieldPostalCode: "00000",
		},
	})
	store.Put(identifier.New(), patient.Document{patient.FieldFirstName: "Broken"})

	out, err := repo.List(ctx, patient.ListParams{Skip: 0, Limit: 100, Search: ""})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, good.ID, out[0].ID)
	assert.Equal(t, legacy, out[1].ID)
	assert.Empty(t, out[1].MedicalHistory)
}

func TestUpdateIsSparse(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	updated, found, err := repo.Update(ctx, created.ID, patient.PatientUpdate{
		ContactNumber: patient.Some("555-0199"),
	})
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "555-0199", updated.ContactNumber)
	assert.Equal(t, created.FirstName, updated.FirstName)
	assert.Equal(t, created.Email, updated.Email)
	assert.Equal(t, created.Address, updated.Address)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt.Time))
}

func TestUpdateWithEmptyPatchRefreshesUpdatedAt(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	updated, found, err := repo.Update(ctx, created.ID, patient.PatientUpdate{})
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt.Time))
	assert.Equal(t, created.ContactNumber, updated.ContactNumber)
}

func TestUpdateClearsEmailAndHistory(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	in := ada()
	in.MedicalHistory = []patient.MedicalHistoryEntry{
		{Condition: "Bruxism", DiagnosedDate: patient.NewTimestamp(time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC))},
	}
	created, err := repo.Create(ctx, in)
	require.NoError(t, err)
	require.Len(t, created.MedicalHistory, 1)

	updated, found, err := repo.Update(ctx, created.ID, patient.PatientUpdate{
		Email:          patient.Null[string](),
		MedicalHistory: patient.Null[[]patient.MedicalHistoryEntry](),
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, updated.Email)
	assert.NotNil(t, updated.MedicalHistory)
	assert.Empty(t, updated.MedicalHistory)

	// The freed email can be claimed by another record.
	_, err = repo.Create(ctx, named("Other", "Person", "ada@example.com"))
	assert.NoError(t, err)
}

func TestUpdateUnknownIDIsAbsent(t *testing.T) {
	repo, _ := newRepo(t)

	p, found, err := repo.Update(context.Background(), identifier.New(), patient.PatientUpdate{
		FirstName: patient.Some("Nobody"),
	})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, p)
}

func TestUpdateRejectsDuplicateEmail(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, ada())
	require.NoError(t, err)
	other, err := repo.Create(ctx, named("Charles", "Babbage", "charles@example.com"))
	require.NoError(t, err)

	_, _, err = repo.Update(ctx, other.ID, patient.PatientUpdate{Email: patient.Some("ada@example.com")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, patient.ErrDuplicateEmail))

	unchanged, _, err := repo.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "charles@example.com", unchanged.Email)
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	_, _, err = repo.Update(ctx, created.ID, patient.PatientUpdate{FirstName: patient.Some("   ")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, patient.ErrValidation))

	unchanged, _, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", unchanged.FirstName)
	assert.Equal(t, created.UpdatedAt, unchanged.UpdatedAt)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, ada())
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentCreatesWithSameEmail(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, named(fmt.Sprintf("P%d", i), "Racer", "shared@example.com"))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, patient.ErrDuplicateEmail))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, store.Len())
}

func TestMonotonicTimestamps(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, named("A", "One", ""))
	require.NoError(t, err)
	second, err := repo.Create(ctx, named("B", "Two", ""))
	require.NoError(t, err)

	assert.True(t, second.CreatedAt.After(first.CreatedAt.Time))
}
