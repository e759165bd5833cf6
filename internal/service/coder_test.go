package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"coding-interface/internal/config"
	"coding-interface/internal/dataset"
	"coding-interface/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCoder(t *testing.T, withTable bool) *Coder {
	t.Helper()

	store := dataset.NewStore(zaptest.NewLogger(t))
	if withTable {
		require.NoError(t, store.LoadReader(strings.NewReader(
			"coding_id,quotation\nA,quote a\nB,quote b\n")))
	}
	return NewCoder(store, config.DefaultTaxonomy(), zaptest.NewLogger(t))
}

func TestOperationsBlockedWithoutTable(t *testing.T) {
	coder := newTestCoder(t, false)

	_, err := coder.Session()
	require.ErrorIs(t, err, ErrNoDataset)

	_, err = coder.Save(models.SaveRequest{CodingID: "A", Classification: "none", CoderName: "alice"})
	require.ErrorIs(t, err, ErrNoDataset)

	_, err = coder.ExportCSV(&bytes.Buffer{})
	require.ErrorIs(t, err, ErrNoDataset)

	_, err = coder.Resume(strings.NewReader("coding_id,coder_name,classification\nA,alice,none\n"))
	require.ErrorIs(t, err, ErrNoDataset)
}

func TestExportFilename(t *testing.T) {
	coder := newTestCoder(t, true)
	now := time.Date(2026, 8, 26, 14, 5, 9, 0, time.UTC)

	assert.Equal(t, "coded_coder_financial_accelerator_20260826_140509.csv",
		coder.ExportFilename(now), "placeholder name before the coder is locked")

	_, err := coder.Save(models.SaveRequest{CodingID: "A", Classification: "strong", CoderName: "  Alice Smith "})
	require.NoError(t, err)

	assert.Equal(t, "coded_alice_smith_financial_accelerator_20260826_140509.csv",
		coder.ExportFilename(now))
}

func TestLoadDatasetKeepsSessionAndClampsCursor(t *testing.T) {
	coder := newTestCoder(t, true)

	_, err := coder.Save(models.SaveRequest{CodingID: "A", Classification: "strong", CoderName: "alice"})
	require.NoError(t, err)

	view, err := coder.Session()
	require.NoError(t, err)
	require.Equal(t, 1, view.Cursor)

	count, err := coder.LoadDataset(strings.NewReader("coding_id,quotation\nA,quote a\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	view, err = coder.Session()
	require.NoError(t, err)
	assert.Equal(t, 0, view.Cursor, "cursor clamped into the smaller table")
	assert.Equal(t, 1, view.LabeledCount, "records survive a table switch")
	assert.Equal(t, "alice", view.CoderName)
}

func TestSessionViewPrefillsPreviousCoding(t *testing.T) {
	coder := newTestCoder(t, true)

	_, err := coder.Save(models.SaveRequest{CodingID: "A", Classification: "moderate", Notes: "hmm", CoderName: "alice"})
	require.NoError(t, err)

	view, err := coder.Jump(0)
	require.NoError(t, err)
	require.True(t, view.AlreadyCoded)
	require.NotNil(t, view.Previous)
	assert.Equal(t, "moderate", view.Previous.Classification)
	assert.Equal(t, "hmm", view.Previous.Notes)
}
