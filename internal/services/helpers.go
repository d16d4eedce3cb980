package services

import (
	"strings"
	"time"
)

// optional trims p and maps an empty result to nil.
func optional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// parseDate accepts a calendar date (2006-01-02) or an RFC3339 timestamp.
// An empty string yields nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, invalid("bad date %q, want YYYY-MM-DD or RFC3339", s)
}

// setOptional applies a patch value to a nullable field: nil leaves it,
// blank clears it.
func setOptional(dst **string, v *string) {
	if v != nil {
		*dst = optional(v)
	}
}
