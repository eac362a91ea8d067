package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/errs"
	"invoicer/pkg/models"
)

func TestNumberFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  int
	}{
		{"Invoice #9", 9},
		{"Invoice #10 (1)", 10},
		{"Invoice #10(1)", 10},
		{"Invoice # 12", 12},
		{"Invoice #", 0},
		{"Invoice #draft", 0},
		{"Invoice #-3", -3},
		{"Other", 0},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, NumberFromTitle(tt.title))
		})
	}
}

func TestNextNumber(t *testing.T) {
	n, err := NextNumber([]string{"Invoice #9", "Invoice #10 (1)", "Other"})
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}

func TestNextNumberWithoutInvoiceTabs(t *testing.T) {
	_, err := NextNumber([]string{"Summary", "Rates", "invoice #3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrMissingData)
}

func TestAllocatePicksSourceTab(t *testing.T) {
	alloc, err := Allocate([]models.Tab{
		{ID: 1, Title: "Rates"},
		{ID: 7, Title: "Invoice #4"},
		{ID: 9, Title: "Invoice #5"},
		{ID: 11, Title: "Invoice #draft"},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, alloc.Identity.Number)
	assert.Equal(t, "Invoice #6", alloc.Identity.Title())
	assert.Equal(t, models.Tab{ID: 9, Title: "Invoice #5"}, alloc.Source)
}

func TestAllocateOnlyNonNumericInvoiceTabs(t *testing.T) {
	alloc, err := Allocate([]models.Tab{{ID: 3, Title: "Invoice #template"}})
	require.NoError(t, err)
	assert.Equal(t, 1, alloc.Identity.Number)
	assert.Equal(t, int64(3), alloc.Source.ID)
}

func TestLatest(t *testing.T) {
	latest, ok := Latest([]string{"Invoice #2", "notes", "Invoice #12", "Invoice #3 (1)"})
	require.True(t, ok)
	assert.Equal(t, "Invoice #12", latest)

	_, ok = Latest([]string{"notes"})
	assert.False(t, ok)
}
