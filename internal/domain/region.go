package domain

import "fmt"

// Region is one geographic unit the service tracks pollen data for.
// Regions are loaded once at startup and never mutated.
type Region struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Prefecture string  `json:"prefecture"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// ErrRegionNotFound is returned by catalog lookups for unknown region ids.
type ErrRegionNotFound struct {
	ID string
}

func (e ErrRegionNotFound) Error() string {
	return fmt.Sprintf("region not found: %s", e.ID)
}
