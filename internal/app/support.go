package app

import (
	"errors"
	"time"

	"pyquest-gamification/internal/domain"
)

// errUnchanged aborts an Update that found nothing to write.
var errUnchanged = errors.New("unchanged")

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// replaceData swaps the contents of an Update callback's map in place.
func replaceData(data, with map[string]any) {
	for k := range data {
		delete(data, k)
	}
	for k, v := range with {
		data[k] = v
	}
}

// childMap returns data[key] as a map, creating it when absent.
func childMap(data map[string]any, key string) map[string]any {
	if m, ok := data[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	data[key] = m
	return m
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
