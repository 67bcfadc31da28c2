package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKey(t *testing.T) {
	assert.Equal(t, "20260829", DayKey(time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, "20260105", DayKey(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestFormatInvoicePadsSequence(t *testing.T) {
	assert.Equal(t, "INV-20260829-0001", FormatInvoice("20260829", 1))
	assert.Equal(t, "INV-20260829-0042", FormatInvoice("20260829", 42))
	assert.Equal(t, "INV-20260829-12345", FormatInvoice("20260829", 12345))
}
