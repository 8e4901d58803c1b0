package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// NowFunc is mockable.
var NowFunc = time.Now

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

func NewID() string {
	return uuid.New().String()
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Today returns the current UTC date as YYYY-MM-DD.
func Today() string {
	return NowFunc().UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// StringInSlice reports whether s is one of list.
func StringInSlice(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
