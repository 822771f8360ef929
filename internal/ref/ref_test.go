package ref

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refPattern = regexp.MustCompile(`^[A-Z]{3}-\d{8}-[0-9A-F]{6}$`)

func TestNew_Format(t *testing.T) {
	for txType, prefix := range map[string]string{
		"deposit":    "DEP",
		"withdrawal": "WDL",
		"transfer":   "TRF",
		"chargeback": "TRX", // unknown type falls back
	} {
		r, err := New(txType)
		assert.NoError(t, err)
		assert.Regexp(t, refPattern, r)
		assert.Equal(t, prefix, r[:3])
	}
}

func TestNew_UsesUTCDate(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	r, err := at("transfer", now)
	assert.NoError(t, err)
	assert.Equal(t, "TRF-20240309", r[:12])
}

func TestNew_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		r, err := New("transfer")
		assert.NoError(t, err)
		seen[r] = true
	}
	// 16^6 values; 1000 draws colliding would point at a broken
	// random source rather than bad luck.
	assert.Greater(t, len(seen), 990)
}
