package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

type createResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *API) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var in AssetInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.svc.CreateAsset(r.Context(), a.actorFrom(r), in)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, createResponse{Success: true, Data: id})
}

func (a *API) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var in LocationInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.svc.CreateLocation(r.Context(), a.actorFrom(r), in)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, createResponse{Success: true, Data: id})
}

func (a *API) handleCreateMutation(w http.ResponseWriter, r *http.Request) {
	var in MutationInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.svc.CreateMutation(r.Context(), a.actorFrom(r), in)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, createResponse{Success: true, Data: id})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	id, err := a.svc.CreateUser(r.Context(), a.actorFrom(r), in)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, createResponse{Success: true, Data: id})
}

// handleListAudit returns audit entries newest-first. limit defaults to 50;
// limit=0 requests the full trail.
func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := a.store.ListAudit(r.Context(), limit)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// actorFrom resolves the acting identity for audit attribution. Auth is not
// wired yet, so the X-Actor header stands in and the configured default
// (normally "System") covers everything else.
func (a *API) actorFrom(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		return actor
	}
	return a.defaultActor
}

// respondFailure maps the failure taxonomy onto HTTP statuses, always with the
// {success:false, error} payload shape.
func respondFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch classify(err) {
	case failValidation, failBusinessRule:
		status = http.StatusBadRequest
	case failReference:
		status = http.StatusNotFound
	case failStore:
		status = http.StatusServiceUnavailable
	}

	var derr *DuplicateError
	if errors.As(err, &derr) {
		status = http.StatusConflict
	}

	respondJSON(w, status, createResponse{Success: false, Error: err.Error()})
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, createResponse{Success: false, Error: err.Error()})
}
