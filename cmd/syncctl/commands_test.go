package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqtlab/ynab-syncer/syncer"
)

func TestPrintMappings(t *testing.T) {
	buf := &bytes.Buffer{}
	err := printMappings(buf, []syncer.PayeeCategoryMapping{{
		PayeeName:        "Woolworths",
		CategoryID:       "A",
		CategoryName:     "Groceries",
		ObservationCount: 3,
		IsActive:         true,
		LastUpdated:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"PAYEE", "CATEGORY", "CATEGORY", "ID", "SEEN", "ACTIVE", "UPDATED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Woolworths", "Groceries", "A", "3", "true", "2024-03-01T00:00:00Z"}, strings.Fields(lines[1]))
}

func TestPrintProcessed(t *testing.T) {
	targetID := "Y1"
	buf := &bytes.Buffer{}
	err := printProcessed(buf, []syncer.ProcessedTransaction{
		{SourceTransactionID: "T1", TargetTransactionID: &targetID, Status: syncer.StatusProcessed,
			PayeeName: "Woolworths", Amount: -12500, Date: "2024-03-01"},
		{SourceTransactionID: "T9", Status: syncer.StatusFailed, PayeeName: "Unknown"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"T1", "Y1", "processed", "Woolworths", "-12500", "2024-03-01", "-"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"T9", "-", "failed", "Unknown", "0", "-"}, strings.Fields(lines[2]))
}
