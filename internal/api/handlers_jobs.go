package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"notely/internal/controller"
	"notely/internal/queue"
)

func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, err := queue.ParseStatus(value)
		if err != nil {
			writeError(s.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		statuses = append(statuses, status)
	}
	if len(statuses) == 0 {
		view, err := s.opts.Queue.View(r.Context())
		if err != nil {
			writeDomainError(s.logger, w, r, err)
			return
		}
		writeJSON(s.logger, w, http.StatusOK, view)
		return
	}
	jobs, err := s.opts.Queue.List(r.Context(), statuses...)
	if err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, QueueView{Jobs: jobs})
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.opts.Queue.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, JobResponse{Job: job})
}

func (s *server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(s.logger, w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(s.logger, w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, `missing file: form field key should be "file"`)
		return
	}
	defer file.Close()

	form := EnqueueForm{
		ParentID: strings.TrimSpace(r.FormValue("parentId")),
		OwnerID:  strings.TrimSpace(r.FormValue("ownerId")),
		Name:     strings.TrimSpace(r.FormValue("name")),
		MimeType: strings.TrimSpace(r.FormValue("mimeType")),
	}
	if raw := strings.TrimSpace(r.FormValue("priority")); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(s.logger, w, http.StatusBadRequest, ErrorResponse{
				Error:  "validation failed",
				Fields: map[string]string{"priority": "must be an integer"},
			})
			return
		}
		form.Priority = priority
	}
	if form.Name == "" {
		form.Name = header.Filename
	}
	if err := s.validate.Struct(form); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Fields: validationErrorsToMap(err),
		})
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}

	resp, err := s.opts.Queue.Enqueue(r.Context(), controller.EnqueueRequest{
		ParentID: form.ParentID,
		OwnerID:  form.OwnerID,
		Name:     form.Name,
		MimeType: form.MimeType,
		Payload:  payload,
		Priority: form.Priority,
	})
	if err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusCreated, resp)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := s.opts.Queue.Refresh(r.Context())
	if err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, view)
}

func (s *server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.opts.Queue.Reorder(r.Context(), req.IDs); err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.opts.Queue.RetryAll(r.Context())
	if err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, resp)
}

func (s *server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Queue.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Queue.Retry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.opts.Queue.Move(r.Context(), chi.URLParam(r, "id"), req.Direction == "up"); err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.opts.Queue.SetPriority(r.Context(), chi.URLParam(r, "id"), *req.Priority); err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, s.opts.Queue.History(chi.URLParam(r, "id")))
}

// decode reads a JSON body into dst and validates it. It writes the error
// reply and returns false on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Fields: validationErrorsToMap(err),
		})
		return false
	}
	return true
}
