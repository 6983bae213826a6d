package service

import (
	"context"
	"testing"
	"time"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCorrectionStore implements CorrectionStore in memory with the same
// contract as the SQL repository: append-only writes, newest-first reads
type memoryCorrectionStore struct {
	corrections []*models.Correction
}

func (m *memoryCorrectionStore) Record(ctx context.Context, correction *models.Correction) error {
	correction.CreatedAt = time.Now()
	m.corrections = append(m.corrections, correction)
	return nil
}

func (m *memoryCorrectionStore) Lookup(ctx context.Context, key models.CorrectionKey) (*models.Correction, error) {
	for i := len(m.corrections) - 1; i >= 0; i-- {
		if m.corrections[i].Key() == key {
			return m.corrections[i], nil
		}
	}
	return nil, nil
}

func (m *memoryCorrectionStore) ListByKey(ctx context.Context, key models.CorrectionKey) ([]*models.Correction, error) {
	var out []*models.Correction
	for i := len(m.corrections) - 1; i >= 0; i-- {
		if m.corrections[i].Key() == key {
			out = append(out, m.corrections[i])
		}
	}
	return out, nil
}

func ohioCorrection(reasoning string) *models.Correction {
	return &models.Correction{
		ID:               uuid.New(),
		JurisdictionCode: "OH",
		OperationType:    models.CompensationForHire,
		OperationRadius:  models.RadiusInterstate,
		Obligations:      models.Obligations{IdentifierRequired: true, DriverQualFilesRequired: true},
		Reasoning:        reasoning,
		ReviewerNotes:    "reviewed",
	}
}

func TestCorrectionLookupReturnsNewestForKey(t *testing.T) {
	store := &memoryCorrectionStore{}
	ctx := context.Background()

	first := ohioCorrection("Leased units count toward the fleet total.")
	second := ohioCorrection("Trailers never count as power units.")
	other := ohioCorrection("Unrelated context.")
	other.OperationRadius = models.RadiusIntrastate

	require.NoError(t, store.Record(ctx, first))
	require.NoError(t, store.Record(ctx, second))
	require.NoError(t, store.Record(ctx, other))

	got, err := store.Lookup(ctx, first.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	// The newest correction supersedes, the older one is never mutated
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, second.Reasoning, got.Reasoning)

	all, err := store.ListByKey(ctx, first.Key())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestCorrectionLookupMissReturnsNil(t *testing.T) {
	store := &memoryCorrectionStore{}

	got, err := store.Lookup(context.Background(), models.CorrectionKey{
		JurisdictionCode: "OH",
		OperationType:    models.CompensationPrivate,
		OperationRadius:  models.RadiusIntrastate,
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDetermineUsesNewestCorrection(t *testing.T) {
	store := &memoryCorrectionStore{}
	ctx := context.Background()

	stale := ohioCorrection("Leased units count toward the fleet total.")
	fresh := ohioCorrection("Trailers never count as power units.")
	require.NoError(t, store.Record(ctx, stale))
	require.NoError(t, store.Record(ctx, fresh))

	client := &stubReasoningClient{reply: `{"usdot": true, "driverQualFiles": true}`}
	svc := NewDeterminationService(
		DeterminationWithKnowledgeBase(DefaultKnowledgeBase()),
		DeterminationWithCorrectionStore(store),
		DeterminationWithReasoningClient(client),
	)

	_, err := svc.Determine(ctx, DetermineRequest{Scenario: interstateForHireScenario()})
	require.NoError(t, err)
	assert.Contains(t, client.lastReq.SystemContext, fresh.Reasoning)
	assert.NotContains(t, client.lastReq.SystemContext, stale.Reasoning)
}
