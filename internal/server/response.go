package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/logger"
	"github.com/koustreak/restdb/internal/record"
)

// errorBody is what clients get for every failed request.
type errorBody struct {
	Code    errs.Code      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorDetails(w, r, err, nil)
}

// writeErrorDetails answers with the code, message and status of err.
// extra is merged into the details err carries.
func (s *Server) writeErrorDetails(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	status := errs.Status(err)
	body := errorBody{Code: errs.CodeOf(err), Message: err.Error()}

	var details map[string]any
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Code != 0 {
			body.Message = e.Message
		}
		details = e.Details
	}
	if body.Code == 0 {
		body.Code = errs.CodeUnknown
	}
	if len(details)+len(extra) > 0 {
		body.Details = make(map[string]any, len(details)+len(extra))
		for k, v := range details {
			body.Details[k] = v
		}
		for k, v := range extra {
			body.Details[k] = v
		}
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
	writeJSON(w, status, body)
}

// --- request bodies ---

func newDecoder(r *http.Request) *json.Decoder {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec
}

// decodeInto reads a JSON body into v.
func decodeInto(r *http.Request, v any) error {
	if err := newDecoder(r).Decode(v); err != nil {
		return errs.CodedWrap(errs.CodeMessageNotReadable, err)
	}
	return nil
}

// decodeRecords reads either one JSON object or an array of them. many
// reports the array form. Numbers stay json.Number so that large integers
// survive.
func decodeRecords(r *http.Request) (records []record.Record, many bool, err error) {
	var raw any
	if err := decodeInto(r, &raw); err != nil {
		return nil, false, err
	}
	switch v := raw.(type) {
	case map[string]any:
		return []record.Record{v}, false, nil
	case []any:
		records = make([]record.Record, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, false, errs.Coded(errs.CodeMessageNotReadable)
			}
			records = append(records, obj)
		}
		return records, true, nil
	}
	return nil, false, errs.Coded(errs.CodeMessageNotReadable)
}
