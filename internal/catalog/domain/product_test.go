package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductNormalizes(t *testing.T) {
	p, err := NewProduct(1, "  Limited Skin  ", 80000, " gamepass ")
	require.NoError(t, err)
	assert.Equal(t, "Limited Skin", p.Name)
	assert.Equal(t, "GAMEPASS", p.Category)
	assert.False(t, p.Spotlight)
}

func TestNewProductValidation(t *testing.T) {
	_, err := NewProduct(1, "   ", 80000, "skin")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewProduct(1, "Limited Skin", 0, "skin")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewProduct(1, "Limited Skin", -5, "skin")
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
