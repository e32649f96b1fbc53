package main

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

func TestLoadFixtures_ExampleFile(t *testing.T) {
	f, err := os.Open("offers.example.yaml")
	require.NoError(t, err)
	defer f.Close()

	inputs, err := loadFixtures(f, time.UTC)
	require.NoError(t, err)
	require.Len(t, inputs, 5)

	summer := inputs[0]
	assert.Equal(t, "Summer Sale", summer.Name)
	assert.Equal(t, domain.TypePercentage, summer.Terms.Type)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), summer.StartDate)
	require.NotNil(t, summer.IsActive)
	assert.True(t, *summer.IsActive)
	assert.True(t, summer.IsFeatured)

	lastMinute := inputs[2]
	assert.Equal(t, domain.KindFixed, lastMinute.Terms.ValueKind)
	require.Len(t, lastMinute.TourOptionSelections, 1)
	assert.Equal(t, []string{"sunset"}, lastMinute.TourOptionSelections[0].SelectedOptions)

	for _, in := range inputs {
		_, err := in.Terms.Terms()
		assert.NoError(t, err, in.Name)
	}
}

func TestLoadFixtures_DatesInLocation(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	in := `
offers:
  - name: x
    type: fixed
    discount_value: 100
    currency: EUR
    start_date: "2026-06-01"
    end_date: "2026-06-30T12:00:00Z"
    inactive: true
`
	inputs, err := loadFixtures(strings.NewReader(in), loc)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, time.Date(2026, 5, 31, 21, 0, 0, 0, time.UTC), inputs[0].StartDate.UTC())
	assert.Equal(t, time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC), inputs[0].EndDate.UTC())
	assert.False(t, *inputs[0].IsActive)
}

func TestLoadFixtures_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "offers: []", "no offers"},
		{"unknown field", "offers:\n  - name: x\n    stackable: true\n", "decode fixtures"},
		{"bad date", "offers:\n  - name: x\n    start_date: soon\n    end_date: \"2026-01-01\"\n", "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFixtures(strings.NewReader(tt.in), time.UTC)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
