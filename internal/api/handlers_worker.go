package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/apperr"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/metrics"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/middleware"
)

type workerHandlers struct {
	deps Dependencies
}

// getWork leases one surviving job descriptor from the queue, filtering
// out messages for fingerprints that already have a stored result — a
// request may have since been satisfied by a duplicate submission's
// cache hit before any worker claimed this message.
func (h *workerHandlers) getWork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bearer, err := h.deps.Credentials.Token(ctx)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "could not obtain outbound credential", err))
		return
	}

	attempts := h.deps.WorkerLeaseAttempts
	if attempts <= 0 {
		attempts = 50
	}
	interval := h.deps.WorkerLeaseInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	for attempt := 0; attempt < attempts; attempt++ {
		body, err := h.deps.Queue.ReceiveAndDelete(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("worker: receive-and-delete failed, retrying")
		} else if body != "" {
			var descriptor media.JobDescriptor
			if err := json.Unmarshal([]byte(body), &descriptor); err != nil || descriptor.Empty() {
				logging.Warn().Msg("worker: dropping malformed job descriptor")
				metrics.RecordLeaseAttempt("malformed")
			} else if _, found, err := h.deps.Results.GetScanRaw(ctx, bearer, descriptor.ImageHash); err == nil && found {
				logging.Debug().Str("fingerprint", descriptor.ImageHash).Msg("worker: dropping already-completed job")
				metrics.RecordLeaseAttempt("already_done")
			} else {
				metrics.RecordLeaseAttempt("leased")
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(descriptor)
				return
			}
		} else {
			metrics.RecordLeaseAttempt("empty")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}

	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte("no work"))
}

// postResult ingests a worker's completed recognition result. Identity and
// provenance fields are never trusted from the body: they are overwritten
// from the caller's authenticated token claims before storage.
func (h *workerHandlers) postResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not read request body", err))
		return
	}

	var result media.RecognitionResult
	if err := json.Unmarshal(body, &result); err != nil {
		writeError(w, apperr.BadInput("request body is not valid JSON"))
		return
	}

	claims := middleware.ClaimsFromContext(ctx)
	if claims != nil {
		result.ScanMachineGuid = claims.MachineGUID()
		result.IsUserScan = !claims.IsAPIToken
	}

	if !result.Valid() {
		writeError(w, apperr.BadInput("recognition result is missing required fields"))
		return
	}

	if err := h.deps.Objects.Delete(ctx, result.Key+"."+result.DataExtension); err != nil {
		logging.Warn().Err(err).Str("key", result.Key).Msg("worker: could not free staged payload")
	}

	bearer, err := h.deps.Credentials.Token(ctx)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "could not obtain outbound credential", err))
		return
	}

	if err := h.deps.Results.SetScan(ctx, bearer, result); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "please try again", err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// getImage serves a staged payload back to the worker that was pointed at
// it by a job descriptor's ScanUrl. It is intentionally unauthenticated:
// the key itself (a fingerprint) is the capability.
func (h *workerHandlers) getImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, err := h.deps.Objects.Get(r.Context(), name)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "could not retrieve staged payload", err))
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/"+media.Extension(b))
	_, _ = w.Write(b)
}
