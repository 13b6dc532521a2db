package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/apperr"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/media"
)

type clientHandlers struct {
	deps Dependencies
}

// status reports component health without requiring any credential.
func (h *clientHandlers) status(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.deps.DBHealth.CheckConnection(r.Context()); err != nil {
		dbStatus = "unreachable"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"SCAN_STATUS": "ok",
		"DB_STATUS":   dbStatus,
	})
}

// detect sniffs the submitted content kind and only routes images to the
// coordinator; every other recognized kind is reported as unsupported and
// unrecognized content returns a soft "Incorrect Result" rather than an
// error, matching callers that probe with arbitrary bytes.
func (h *clientHandlers) detect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not read request body", err))
		return
	}

	switch media.SniffKind(body) {
	case media.KindImage:
		h.recognizeAndRespond(w, r, body)
	case media.KindUnknown:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Incorrect Result"))
	default:
		writeError(w, apperr.UnsupportedKind("We do not support this media type yet."))
	}
}

// detectImage always treats the body as image bytes.
func (h *clientHandlers) detectImage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not read request body", err))
		return
	}
	if len(body) == 0 {
		writeError(w, apperr.BadInput("request body must not be empty"))
		return
	}
	h.recognizeAndRespond(w, r, body)
}

// detectImageFromUrl fetches the image from a caller-supplied URL before
// feeding it through the coordinator; any fetch failure is a bad_input,
// not internal, since the fault is in what the caller supplied.
func (h *clientHandlers) detectImageFromUrl(w http.ResponseWriter, r *http.Request) {
	urlBytes, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not read request body", err))
		return
	}

	resp, err := h.deps.URLFetcher.Get(string(urlBytes))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not fetch the submitted URL", err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not read the submitted URL's response body", err))
		return
	}

	h.recognizeAndRespond(w, r, body)
}

// getHash returns the fingerprint of the raw submitted bytes, without
// canonicalization — a utility endpoint for callers that want to probe
// the result store themselves.
func (h *clientHandlers) getHash(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindBadInput, "could not read request body", err))
		return
	}

	hash, err := media.Fingerprint(body)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "could not compute fingerprint", err))
		return
	}

	_, _ = w.Write([]byte(hash))
}

func (h *clientHandlers) recognizeAndRespond(w http.ResponseWriter, r *http.Request, raw []byte) {
	result, err := h.deps.Recognizer.Recognize(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(result)); err != nil {
		logging.Warn().Err(err).Msg("api: could not write recognition result to client")
	}
}
