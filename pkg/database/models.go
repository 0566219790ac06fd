package database

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned when no registry row matches a URL.
var ErrJobNotFound = errors.New("job not found")

// Job is one submitted URL. Running is true from submission until the keeper
// reports completion.
type Job struct {
	ID        int32     `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Running   bool      `json:"running"`
}
