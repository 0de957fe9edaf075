package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/cruisesync/app/models"
)

func cell(cents int64) PriceCell {
	return PriceCell{PriceCents: cents, TotalCents: cents, Available: true}
}

func key(rate string) models.RateKey {
	return models.RateKey{RateCode: rate, CabinCode: "IB", OccupancyCode: "2"}
}

func TestParsePrecedence(t *testing.T) {
	p, err := ParsePrecedence("cached, live")
	require.NoError(t, err)
	assert.Equal(t, Precedence{SourceCached, SourceLive}, p)

	_, err = ParsePrecedence("live,psychic")
	assert.Error(t, err)

	_, err = ParsePrecedence(" , ,")
	assert.Error(t, err)

	// Duplicates collapse.
	p, err = ParsePrecedence("live,live,combined")
	require.NoError(t, err)
	assert.Equal(t, Precedence{SourceLive, SourceCombined}, p)
}

func TestSelectMatrix_FirstNonEmptyWins(t *testing.T) {
	doc := &Document{
		Live:   Matrix{},
		Cached: Matrix{key("R1"): cell(100)},
	}

	m, source, ok := doc.SelectMatrix(DefaultPrecedence())
	require.True(t, ok)
	assert.Equal(t, SourceCached, source)
	assert.Len(t, m, 1)
}

func TestSelectMatrix_PolicyOrderRespected(t *testing.T) {
	doc := &Document{
		Live:   Matrix{key("R1"): cell(100)},
		Cached: Matrix{key("R1"): cell(90)},
	}

	m, source, ok := doc.SelectMatrix(Precedence{SourceCached, SourceLive})
	require.True(t, ok)
	assert.Equal(t, SourceCached, source)
	assert.Equal(t, int64(90), m[key("R1")].PriceCents)
}

func TestSelectMatrix_AllEmptyIsSoldOutNotError(t *testing.T) {
	doc := &Document{Live: Matrix{}, Cached: Matrix{}}

	m, source, ok := doc.SelectMatrix(DefaultPrecedence())
	assert.True(t, ok)
	assert.Empty(t, m)
	assert.Equal(t, SourceLive, source)
}

func TestSelectMatrix_NoConfiguredSourcePresent(t *testing.T) {
	doc := &Document{Combined: Matrix{key("R1"): cell(100)}}

	_, _, ok := doc.SelectMatrix(Precedence{SourceLive, SourceCached})
	assert.False(t, ok)
}

func TestSelectMatrix_EmptyPolicyUsesDefault(t *testing.T) {
	doc := &Document{Combined: Matrix{key("R1"): cell(100)}}

	_, source, ok := doc.SelectMatrix(nil)
	require.True(t, ok)
	assert.Equal(t, SourceCombined, source)
}
