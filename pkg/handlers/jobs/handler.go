package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/autoshots/core/pkg/database"
	runs "github.com/autoshots/core/pkg/jobs"
	"github.com/autoshots/core/pkg/keeper"
	"github.com/autoshots/core/pkg/logger"
	"github.com/autoshots/core/pkg/models/api"
)

// Registry is the job registry as the front end uses it
type Registry interface {
	UpsertRunningJob(ctx context.Context, url string) (database.Job, bool, error)
	MarkJobDone(ctx context.Context, url string) (database.Job, error)
	ListJobs(ctx context.Context, running bool) ([]database.Job, error)
}

// Launcher starts keeper runs. *runs.Supervisor implements it.
type Launcher interface {
	Start(ctx context.Context, target keeper.Target) (runs.RunInfo, error)
	IsActive(url string) bool
}

// Handler serves job submission, completion and listing
type Handler struct {
	registry    Registry
	launcher    Launcher
	remoteBase  string
	callbackURL string
	logger      *logger.Logger
}

// NewHandler creates a jobs handler. remoteBase is the browsershots root the
// submitted URL is appended to; callbackURL is where runs report completion.
func NewHandler(registry Registry, launcher Launcher, remoteBase, callbackURL string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		registry:    registry,
		launcher:    launcher,
		remoteBase:  strings.TrimRight(remoteBase, "/"),
		callbackURL: callbackURL,
		logger:      log,
	}
}

// JobURL is the browsershots status page for a submitted URL
func (h *Handler) JobURL(url string) string {
	return h.remoteBase + "/" + url
}

func (h *Handler) log(r *http.Request) *logger.Logger {
	return logger.FromContext(r.Context(), h.logger)
}

// List handles / and /api/jobs
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/api/jobs" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := h.log(r)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	running, err := h.registry.ListJobs(ctx, true)
	if err != nil {
		log.Error().Err(err).Str("action", "list_running_failed").Msg("Failed to query running jobs")
		http.Error(w, "Failed to query jobs", http.StatusInternalServerError)
		return
	}
	history, err := h.registry.ListJobs(ctx, false)
	if err != nil {
		log.Error().Err(err).Str("action", "list_history_failed").Msg("Failed to query finished jobs")
		http.Error(w, "Failed to query jobs", http.StatusInternalServerError)
		return
	}

	response := api.JobsResponse{
		Running: h.convertJobsToResponse(running),
		History: h.convertJobsToResponse(history),
		Now:     time.Now().UTC(),
	}

	log.Debug().
		Str("action", "jobs_response").
		Int("running", len(running)).
		Int("history", len(history)).
		Msg("Returning job list")

	h.writeJSON(w, r, http.StatusOK, response)
}

// Add handles POST /add: registers url as running and starts a keeper run
// for it. Re-adding a URL re-runs it.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := h.log(r)
	url := strings.TrimSpace(r.FormValue("url"))
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	job, created, err := h.registry.UpsertRunningJob(ctx, url)
	if err != nil {
		log.Error().Err(err).Str("action", "add_job_failed").Str("url", url).Msg("Failed to register job")
		http.Error(w, "Failed to register job", http.StatusInternalServerError)
		return
	}

	message := "Url " + url + " re-run."
	if created {
		message = "Url " + url + " added."
	}

	target := keeper.Target{
		URL:         url,
		JobURL:      h.JobURL(url),
		CallbackURL: h.callbackURL,
	}

	var run *api.RunResponse
	info, err := h.launcher.Start(ctx, target)
	switch {
	case err == nil:
		run = &api.RunResponse{ID: info.ID, Name: info.Name, StartedAt: info.StartedAt}
	case errors.Is(err, runs.ErrRunElsewhere):
		message = "Url " + url + " is already being kept alive."
	default:
		log.Error().Err(err).Str("action", "start_run_failed").Str("url", url).Msg("Failed to start keeper run")
		http.Error(w, "Failed to start keeper run", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("action", "job_added").
		Str("url", url).
		Bool("created", created).
		Bool("started", run != nil).
		Msg(message)

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.writeJSON(w, r, http.StatusAccepted, api.AddJobResponse{
		Job:     h.convertJobToResponse(job),
		Run:     run,
		Created: created,
		Message: message,
	})
}

// Done handles POST /done, the completion callback of keeper runs. Unknown
// URLs are refused with 401.
func (h *Handler) Done(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := h.log(r)
	url := r.FormValue("url")
	if url == "" {
		http.Error(w, "Unknown job", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	job, err := h.registry.MarkJobDone(ctx, url)
	if errors.Is(err, database.ErrJobNotFound) {
		log.Warn().Str("action", "done_unknown_job").Str("url", url).Msg("Completion reported for unknown job")
		http.Error(w, "Unknown job", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("action", "done_failed").Str("url", url).Msg("Failed to mark job done")
		http.Error(w, "Failed to update job", http.StatusInternalServerError)
		return
	}

	log.Info().Str("action", "job_done").Str("url", url).Msg("Job finished")

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.writeJSON(w, r, http.StatusOK, api.Response{
		Success: true,
		Data:    h.convertJobToResponse(job),
		Message: "Url " + url + " done.",
	})
}

func (h *Handler) convertJobsToResponse(dbJobs []database.Job) []api.JobResponse {
	jobs := make([]api.JobResponse, 0, len(dbJobs))
	for _, job := range dbJobs {
		jobs = append(jobs, h.convertJobToResponse(job))
	}
	return jobs
}

func (h *Handler) convertJobToResponse(job database.Job) api.JobResponse {
	return api.JobResponse{
		ID:        job.ID,
		URL:       job.URL,
		JobURL:    h.JobURL(job.URL),
		CreatedAt: job.CreatedAt,
		Running:   job.Running,
		Active:    h.launcher.IsActive(job.URL),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log(r).Error().Err(err).Msg("Failed to encode response")
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
