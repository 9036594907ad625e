// Package id generates run identifiers of the form YYYY-NNNN, where NNNN
// is a zero-padded sequence that is monotonic within a calendar year.
package id

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var pattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// Valid reports whether s is a well-formed run identifier.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Next returns the next identifier for now's year given every identifier
// already in use. Identifiers from other years are ignored, so the sequence
// restarts at 0001 each January.
func Next(now time.Time, existing []string) string {
	year := now.Format("2006")
	max := 0
	for _, id := range existing {
		m := pattern.FindStringSubmatch(id)
		if m == nil || m[1] != year {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%04d", year, max+1)
}
