package services

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// jst is the calendar used for event days, streaks and activity buckets.
var jst = time.FixedZone("Asia/Tokyo", 9*60*60)

func startOfDay(t time.Time) time.Time {
	t = t.In(jst)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, jst)
}

// parseDate accepts RFC3339 or a bare YYYY-MM-DD (midnight in Japan).
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, jst)
	if err != nil {
		return time.Time{}, invalidf("date %q must be RFC3339 or YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// newCode returns 12 uppercase hex characters.
func newCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// amountSQL is the per-row value a participation adds to its challenge.
const amountSQL = "(CASE WHEN contribution < 1 THEN 1 ELSE contribution END + companion_count)"

// contributionSQL counts a participation's own contribution, at least 1.
const contributionSQL = "(CASE WHEN contribution < 1 THEN 1 ELSE contribution END)"
