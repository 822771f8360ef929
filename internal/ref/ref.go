// Package ref generates human-readable transaction references of the
// form <PREFIX>-<YYYYMMDD>-<6 uppercase hex chars>.
package ref

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

var prefixes = map[string]string{
	"deposit":    "DEP",
	"withdrawal": "WDL",
	"transfer":   "TRF",
}

// defaultPrefix tags references for unrecognised transaction types.
const defaultPrefix = "TRX"

// New returns a fresh reference for txType, dated with the current
// UTC day. The random suffix comes from crypto/rand; uniqueness is
// ultimately enforced by the storage index and callers retry on the
// rare collision.
func New(txType string) (string, error) {
	return at(txType, time.Now().UTC())
}

func at(txType string, now time.Time) (string, error) {
	prefix, ok := prefixes[txType]
	if !ok {
		prefix = defaultPrefix
	}
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	suffix := strings.ToUpper(hex.EncodeToString(buf))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix), nil
}
