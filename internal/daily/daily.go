// Package daily picks one catalog item per calendar day.
//
// The pick is a pure function of the UTC date and the catalog order: the date is
// formatted as YYYY-MM-DD, hashed with djb2 and reduced modulo the catalog size.
// Reordering the catalog changes which item a date maps to.
package daily

import (
	"errors"
	"time"
)

// SeedLayout is the calendar representation hashed for a date.
const SeedLayout = "2006-01-02"

// ErrEmptyCatalog is returned when there is nothing to pick from. It is a
// configuration problem; retrying with the same catalog cannot succeed.
var ErrEmptyCatalog = errors.New("daily: catalog is empty")

// Seed normalizes t to its UTC calendar day.
func Seed(t time.Time) string {
	return t.UTC().Format(SeedLayout)
}

// ParseSeed parses a YYYY-MM-DD string as a UTC date.
func ParseSeed(s string) (time.Time, error) {
	return time.ParseInLocation(SeedLayout, s, time.UTC)
}

// Hash is the djb2 variant acc = acc*33 ^ c over the bytes of s, in uint32.
func Hash(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = (h * 33) ^ uint32(s[i])
	}
	return h
}

// Index returns the catalog position chosen for date in a catalog of n items.
func Index(date time.Time, n int) (int, error) {
	if n <= 0 {
		return 0, ErrEmptyCatalog
	}
	return int(Hash(Seed(date)) % uint32(n)), nil
}

// Pick returns the item for date. The same UTC day always yields the same item.
func Pick[T any](date time.Time, items []T) (T, error) {
	var zero T
	i, err := Index(date, len(items))
	if err != nil {
		return zero, err
	}
	return items[i], nil
}
