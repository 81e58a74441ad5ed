package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfuentes/cuentaclara/internal/common"
	"github.com/mfuentes/cuentaclara/internal/model"
	"github.com/mfuentes/cuentaclara/internal/service"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord() *service.AuditRecord {
	return &service.AuditRecord{
		BillRef: "bill-2026-001",
		State:   "mixed confirmed-and-opaque copayment",
		Balance: model.Balance{
			Confirmed:     25_000,
			Controversial: 100_000,
			Opaque:        350_000,
			Legitimate:    25_000,
			Total:         500_000,
		},
		Findings: []*model.Finding{
			{
				ID:       "f1",
				Category: model.CategoryConfirmed,
				Amount:   25_000,
				Label:    "Duplicated operating room fee",
				Action:   model.ActionDispute,
				Evidence: []model.EvidenceRef{
					{Source: model.SourceBill, Section: "PABELLON", ItemIndex: 3},
				},
			},
			{
				ID:       "f2",
				Category: model.CategoryOpaque,
				Amount:   350_000,
				Label:    "Unexplained supplies charge",
				Action:   model.ActionClarify,
				Evidence: []model.EvidenceRef{
					{Source: model.SourcePAM, Section: "INSUMOS", ItemIndex: model.SectionScope},
				},
			},
		},
		Alerts: []string{"ALERTA_BALANCE: opaque bucket capped at remainder"},
	}
}

func TestSaveAndGetAudit(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	id, err := s.SaveAudit(ctx, sampleRecord())
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := s.GetAudit(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "bill-2026-001", got.BillRef)
	assert.Equal(t, int64(500_000), got.Balance.Total)
	assert.Equal(t, int64(350_000), got.Balance.Opaque)
	assert.Equal(t, "mixed confirmed-and-opaque copayment", got.State)
	assert.False(t, got.CreatedAt.IsZero())

	require.Len(t, got.Findings, 2)
	assert.Equal(t, model.CategoryConfirmed, got.Findings[0].Category)
	assert.Equal(t, model.ActionDispute, got.Findings[0].Action)
	require.Len(t, got.Findings[0].Evidence, 1)
	assert.Equal(t, 3, got.Findings[0].Evidence[0].ItemIndex)
	assert.True(t, got.Findings[1].Evidence[0].IsSectionScope())

	require.Len(t, got.Alerts, 1)
	assert.Contains(t, got.Alerts[0], "ALERTA_BALANCE")
}

func TestGetAuditNotFound(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.GetAudit(context.Background(), 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveAuditValidation(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.SaveAudit(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParameter)

	record := sampleRecord()
	record.State = ""
	_, err = s.SaveAudit(ctx, record)
	assert.ErrorIs(t, err, ErrInvalidAudit)

	record = sampleRecord()
	record.Findings[0].ID = ""
	_, err = s.SaveAudit(ctx, record)
	assert.ErrorIs(t, err, ErrInvalidFinding)
}

func TestListAudits(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	first := sampleRecord()
	first.CreatedAt = time.Now().Add(-48 * time.Hour)
	_, err := s.SaveAudit(ctx, first)
	require.NoError(t, err)

	second := sampleRecord()
	second.BillRef = "bill-2026-002"
	second.CreatedAt = time.Now()
	_, err = s.SaveAudit(ctx, second)
	require.NoError(t, err)

	records, err := s.ListAudits(ctx, service.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bill-2026-002", records[0].BillRef, "newest first")
	assert.Nil(t, records[0].Findings, "summaries do not load findings")

	since := time.Now().Add(-time.Hour)
	recent, err := s.ListAudits(ctx, service.AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "bill-2026-002", recent[0].BillRef)

	limited, err := s.ListAudits(ctx, service.AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestStorage(t)
	require.NoError(t, s.Migrate(context.Background()))

	var version int
	err := s.db.QueryRow(`SELECT MAX(version) FROM schema_versions`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}
