// Package injury persists an ordered list of caller-defined injury records as
// one JSON array stored under a single key of a key-value store.
//
// Every mutation reads the whole list, changes it in memory and writes the
// whole list back. GetInjuries never reports an error: read and decode
// failures are logged and an empty list is returned. All other operations
// log and return a *PersistenceError.
package injury

import (
	"encoding/json"
	"math"
	"strconv"
)

// IDField is the only record field the store interprets.
const IDField = "id"

// Injury is a caller-defined record such as
// {"id": 1, "part": "knee", "severity": "mild"}. Fields other than "id" are
// stored as given.
type Injury map[string]any

// ID returns the record's id, or nil when it has none.
func (i Injury) ID() any {
	return i[IDField]
}

// SameID reports whether two ids are strictly equal. Strings only equal
// strings and numbers only equal numbers, so "1" never matches 1. Numbers of
// any Go numeric kind compare by value, which lets ids decoded from JSON
// (float64) match ids supplied as int. nil matches only nil.
func SameID(a, b any) bool {
	an, aIsNum := asNumber(a)
	bn, bIsNum := asNumber(b)
	if aIsNum || bIsNum {
		return aIsNum && bIsNum && an == bn
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		// objects and arrays have no value equality
		return false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	default:
		return 0, false
	}
}

func indexOf(injuries []Injury, id any) int {
	for i, injury := range injuries {
		if SameID(injury.ID(), id) {
			return i
		}
	}
	return -1
}

// ParseID converts an id taken from text (a URL segment, a CLI argument) into
// the value stored ids are compared with: a number when raw parses as one,
// otherwise the string itself. forceString keeps raw as a string.
func ParseID(raw string, forceString bool) any {
	if forceString {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return raw
	}
	return f
}
