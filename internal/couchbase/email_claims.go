package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog"

	"stealthcompany.com/dentalapp/internal/patient"
)

// claimPrefix marks the documents that reserve an email address. Key-value
// inserts are atomic, so a claim stands in for the unique index the query
// service cannot provide.
const claimPrefix = "email::"

func claimKey(email string) string {
	return claimPrefix + email
}

// EmailClaims reserves email addresses for patient ids.
type EmailClaims struct {
	collection *gocb.Collection
}

func NewEmailClaims(collection *gocb.Collection) *EmailClaims {
	return &EmailClaims{collection: collection}
}

// Claim reserves email for patientID. Re-claiming an address already held
// by the same patient succeeds.
func (c *EmailClaims) Claim(ctx context.Context, email, patientID string) error {
	claim := map[string]any{
		"patient_id": patientID,
		"claimed_at": time.Now().UTC(),
	}

	_, err := c.collection.Insert(claimKey(email), claim, &gocb.InsertOptions{Context: ctx})
	if err == nil {
		return nil
	}
	if !errors.Is(err, gocb.ErrDocumentExists) {
		return fmt.Errorf("failed to claim email: %w", err)
	}

	holder, err := c.holder(ctx, email)
	if err != nil {
		return err
	}
	if holder == patientID {
		return nil
	}
	return patient.ErrDuplicateEmail
}

// Release frees email. A missing claim is not an error.
func (c *EmailClaims) Release(ctx context.Context, email string) {
	_, err := c.collection.Remove(claimKey(email), &gocb.RemoveOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("claim", claimKey(email)).Msg("Failed to release email claim")
	}
}

func (c *EmailClaims) holder(ctx context.Context, email string) (string, error) {
	res, err := c.collection.Get(claimKey(email), &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		// Released between our insert and this read; treat as contended.
		return "", patient.ErrDuplicateEmail
	}
	if err != nil {
		return "", fmt.Errorf("failed to read email claim: %w", err)
	}

	var claim struct {
		PatientID string `json:"patient_id"`
	}
	if err := res.Content(&claim); err != nil {
		return "", fmt.Errorf("failed to parse email claim: %w", err)
	}
	return claim.PatientID, nil
}
