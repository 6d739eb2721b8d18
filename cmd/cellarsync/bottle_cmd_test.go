package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/db"
	"github.com/cellarsync/cellarsync/internal/store"
)

func TestParseBottleInputs_YAMLSingle(t *testing.T) {
	inputs, err := parseBottleInputs([]byte(`
name: Barolo
vintage: 2016
type: red
country: Italy
region: Piedmont
grapeVariety: [Nebbiolo]
quantity: 3
price:
  amount: 45.5
  currency: EUR
`))
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	in := inputs[0]
	assert.Equal(t, "Barolo", in.Name)
	assert.Equal(t, 2016, in.Vintage)
	assert.Equal(t, []string{"Nebbiolo"}, in.GrapeVariety)
	require.NotNil(t, in.Price)
	assert.Equal(t, 45.5, in.Price.Amount)
	assert.Equal(t, "EUR", in.Price.Currency)

	b, err := cellar.NewBottle(in.params(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, b.Quantity())
}

func TestParseBottleInputs_JSONList(t *testing.T) {
	inputs, err := parseBottleInputs([]byte(`[
	{"name": "Chablis", "vintage": 2020, "type": "white", "country": "France", "region": "Burgundy"},
	{"name": "Cava", "vintage": 2021, "type": "sparkling", "country": "Spain", "region": "Penedès"}
]`))
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "Chablis", inputs[0].Name)
	assert.Equal(t, "sparkling", inputs[1].Type)
}

func TestParseBottleInputs_Invalid(t *testing.T) {
	_, err := parseBottleInputs([]byte(""))
	assert.Error(t, err)

	_, err = parseBottleInputs([]byte("name: [unclosed"))
	assert.Error(t, err)
}

func TestFindBottle(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, db.MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	put := func(id string) {
		b, err := cellar.NewBottle(cellar.NewBottleParams{
			Name: "Rioja", Vintage: 2018, Type: cellar.WineTypeRed, Country: "Spain", Region: "Rioja",
		}, time.Now())
		require.NoError(t, err)
		b.ID = id
		require.NoError(t, st.PutBottle(ctx, b))
	}
	put("abc-111")
	put("abc-222")
	put("def-333")

	b, err := findBottle(ctx, st, "abc-111")
	require.NoError(t, err)
	assert.Equal(t, "abc-111", b.ID)

	b, err = findBottle(ctx, st, "def")
	require.NoError(t, err)
	assert.Equal(t, "def-333", b.ID)

	_, err = findBottle(ctx, st, "abc")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = findBottle(ctx, st, "zzz")
	assert.ErrorIs(t, err, store.ErrBottleNotFound)
}
