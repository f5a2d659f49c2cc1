package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The year-scoped max+1 assignment itself lives in the NextRequestNumber
// SQL and is only exercised against a real database.
func TestFormatRequestNumber(t *testing.T) {
	assert.Equal(t, "ACQ-2026-0001", FormatRequestNumber(2026, 1))
	assert.Equal(t, "ACQ-2026-0010", FormatRequestNumber(2026, 10))
	assert.Equal(t, "ACQ-2027-0001", FormatRequestNumber(2027, 1), "sequence restarts each year")
	assert.Equal(t, "ACQ-2026-12345", FormatRequestNumber(2026, 12345), "sequence grows past four digits")
}
