package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rbaliyan/stegocrypt"
)

// errorBody is the JSON body of every failed request. It never carries
// key material or payload data.
type errorBody struct {
	Success      bool                           `json:"success"`
	Error        string                         `json:"error"`
	Layer        string                         `json:"layer,omitempty"`
	Hint         string                         `json:"hint,omitempty"`
	RequestID    string                         `json:"request_id,omitempty"`
	Verification *stegocrypt.VerificationResult `json:"verification,omitempty"`
}

// badRequest marks a client input error.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// errTooLarge rejects a message over Config.MaxPlaintextBytes.
var errTooLarge = errors.New("message too large")

func invalid(format string, args ...any) error {
	return &badRequest{err: fmt.Errorf(format, args...)}
}

// statusOf maps an error to an HTTP status: input errors are 400, pipeline
// failures 422, everything else 500.
func statusOf(err error) int {
	var br *badRequest
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe), errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &br):
		return http.StatusBadRequest
	}
	if _, ok := stegocrypt.LayerOf(err); ok {
		return http.StatusUnprocessableEntity
	}
	switch {
	case stegocrypt.IsIncompleteKeyMaterial(err), stegocrypt.IsSchemeMismatch(err),
		stegocrypt.IsUnsupportedParameter(err), stegocrypt.IsMissingSenderIdentifier(err),
		stegocrypt.IsEnvelopeMalformed(err), stegocrypt.IsCorruptedCarrier(err),
		stegocrypt.IsPayloadTooLarge(err), stegocrypt.IsUnsupportedIdentifierCharacters(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, res *stegocrypt.VerificationResult) {
	status := statusOf(err)
	body := errorBody{
		Error:     err.Error(),
		Hint:      stegocrypt.Hint(err),
		RequestID: requestID(r.Context()),
	}
	if l, ok := stegocrypt.LayerOf(err); ok {
		body.Layer = l.String()
	}
	if res != nil {
		// diagnostics only
		body.Verification = &stegocrypt.VerificationResult{
			ExtractedIdentifier: res.ExtractedIdentifier,
			SignatureValid:      res.SignatureValid,
			HashValid:           res.HashValid,
			IdentifierMatch:     res.IdentifierMatch,
			Warnings:            res.Warnings,
		}
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	s.log(r).WithError(err).WithField("status", status).Warn("request failed")
	writeJSON(w, status, body)
}

// checkSize enforces the plaintext limit on a message named field.
func (s *Server) checkSize(field string, msg string) error {
	if int64(len(msg)) > s.cfg.MaxPlaintextBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", errTooLarge, field, len(msg), s.cfg.MaxPlaintextBytes)
	}
	return nil
}

// decode reads a JSON body no larger than the configured limit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return invalid("invalid JSON body: %v", err)
	}
	return nil
}
