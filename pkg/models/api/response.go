package api

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	ActiveRuns int         `json:"active_runs"`
	Database   interface{} `json:"database,omitempty"`
}

// JobResponse represents a registry job in API responses
type JobResponse struct {
	ID        int32     `json:"id"`
	URL       string    `json:"url"`
	JobURL    string    `json:"job_url"`
	CreatedAt time.Time `json:"created_at"`
	Running   bool      `json:"running"`
	// Active is set when this instance has a live keeper run for the URL
	Active bool `json:"active"`
}

// JobsResponse is the home listing, newest first in both groups
type JobsResponse struct {
	Running []JobResponse `json:"running"`
	History []JobResponse `json:"history"`
	Now     time.Time     `json:"now"`
}

// RunResponse describes a keeper run started by a submission
type RunResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}

// AddJobResponse is returned to API clients of /add
type AddJobResponse struct {
	Job     JobResponse  `json:"job"`
	Run     *RunResponse `json:"run,omitempty"`
	Created bool         `json:"created"`
	Message string       `json:"message"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}
