package models

import "regexp"

// CashIndexTicker is the US dollar index proxy appended to every universe.
const CashIndexTicker = "DX-Y.NYB"

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)

// IsValidTicker reports whether s is a plain listed symbol: 1-5 uppercase
// letters with an optional single-letter share class (BRK.B).
func IsValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// Universe is the resolved set of symbols for a pipeline run.
type Universe struct {
	Valid     []string
	Invalid   []string
	PerSource map[string]int
}
