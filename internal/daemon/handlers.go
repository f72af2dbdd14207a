package daemon

import (
	"errors"
	"net/http"

	"filmlog/internal/api"
	"filmlog/internal/jobs"
	"filmlog/internal/logging"
	"filmlog/internal/preflight"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	kind := services.Kind(err)
	if errors.Is(err, jobs.ErrNotRunning) {
		status, kind = http.StatusServiceUnavailable, "unavailable"
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, kind),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: services.Message(err), Kind: kind})
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.jobs.RequestIngestion(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.IngestResponse{
		JobID:    job.JobID,
		Username: job.Username,
		State:    string(job.State),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.jobs.Status(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.daemon.store.ListSyncedProfiles(r.Context())
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrPersistence, "api", "profiles", "list profiles", err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProfilesResponse{Profiles: api.FromProfiles(profiles)})
}

func (s *apiServer) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, err := s.daemon.engine.Analyze(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := s.daemon.jobs.DeleteProfile(r.Context(), username); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: true, Username: store.NormalizeUsername(username)})
}

func (s *apiServer) handleSystem(w http.ResponseWriter, r *http.Request) {
	snap, err := s.daemon.engine.System(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSystem(snap))
}

func (s *apiServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.engine.Compare(r.Context(), r.PathValue("a"), r.PathValue("b"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCompatibility(result))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	checks := append(preflight.RunLocal(s.daemon.cfg), s.daemon.site.Check(r.Context()))
	payload := api.Health{
		Status:       "ok",
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		ActiveJobs:   status.Jobs.ActiveJobs,
		JobCounts:    api.JobCounts(status.Jobs.JobCounts),
		LastError:    status.Jobs.LastError,
		Checks:       api.FromChecks(checks),
	}
	if err := s.daemon.store.Ping(r.Context()); err != nil {
		payload.Checks = append(payload.Checks, api.Check{Name: "Database", Detail: err.Error()})
	} else {
		payload.Checks = append(payload.Checks, api.Check{Name: "Database", Passed: true, Detail: status.DatabasePath})
	}
	if !status.Running || !allPassed(payload.Checks) {
		payload.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func allPassed(checks []api.Check) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}
