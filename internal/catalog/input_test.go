package catalog

import (
	"bytes"
	"testing"

	"github.com/bookstore/storefront/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParsesFields(t *testing.T) {
	in := duneInput()
	in.Title = "  Dune  "
	in.Quantity = "0"

	book, err := in.Validate(&Image{Filename: "x.png", Content: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, 1965, book.Date.Year())
	assert.Equal(t, 0, book.Quantity)
}

func TestValidateRejectsLongTitle(t *testing.T) {
	in := duneInput()
	in.Title = string(bytes.Repeat([]byte("a"), 251))

	_, err := in.Validate(coverImage())
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Equal(t, []validation.FieldError{{Field: "title", Message: "must be at most 250 characters"}}, verr.Fields)
}

func TestValidateRequiresImageName(t *testing.T) {
	_, err := duneInput().Validate(&Image{Filename: " ", Content: bytes.NewReader(pngHeader)})
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.True(t, verr.Has("image"))
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	for _, raw := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := ParseID(raw)
		verr, ok := validation.As(err)
		require.True(t, ok, raw)
		assert.True(t, verr.Has("id"), raw)
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("7")
	require.NoError(t, err)
	assert.Equal(t, 7, q)

	_, err = ParseQuantity("-1")
	assert.Error(t, err)

	_, err = ParseQuantity("many")
	assert.Error(t, err)
}
