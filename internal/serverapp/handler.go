package serverapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"aerodb/internal/dataerr"
	"aerodb/internal/logging"
	"aerodb/internal/ops"
)

// Caller is the part of the operation registry the API serves.
type Caller interface {
	Call(ctx context.Context, name string, args map[string]any) (any, error)
	Describe() []ops.Description
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type resultBody struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

// statusForKind maps an error kind onto an HTTP status. Unlisted kinds are
// internal failures.
var statusForKind = map[string]int{
	dataerr.KindSchema:            http.StatusBadRequest,
	dataerr.KindInvalidClauseKind: http.StatusBadRequest,
	dataerr.KindInvalidArgument:   http.StatusBadRequest,
	dataerr.KindUnknownOperation:  http.StatusNotFound,
	dataerr.KindNotFound:          http.StatusNotFound,
	dataerr.KindAmbiguousJoin:     http.StatusConflict,
	dataerr.KindWriteConflict:     http.StatusConflict,
}

// apiHandler serves GET and POST /api/{op}. GET takes arguments from the
// query string; POST takes a flat JSON object.
func apiHandler(registry Caller, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("op")

		var args map[string]any
		var err error
		switch r.Method {
		case http.MethodGet:
			args, err = queryArgs(r.URL.Query())
		case http.MethodPost:
			args, err = bodyArgs(w, r, maxBodyBytes)
		default:
			w.Header().Set("Allow", "GET, POST")
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Kind: "method_not_allowed", Message: "use GET or POST"}})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: dataerr.KindInvalidArgument, Message: err.Error()}})
			return
		}

		result, err := registry.Call(r.Context(), name, args)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resultBody{Operation: name, Result: result})
	}
}

// listHandler serves GET /api with the documented operations.
func listHandler(registry Caller) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"operations": registry.Describe()})
	}
}

// queryArgs turns query parameters into call arguments. A repeated key
// becomes a list; a value that opens with [ or { is decoded as JSON.
func queryArgs(q url.Values) (map[string]any, error) {
	args := make(map[string]any, len(q))
	for key, values := range q {
		if len(values) > 1 {
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			args[key] = list
			continue
		}
		v := strings.TrimSpace(values[0])
		if strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{") {
			decoded, err := decodeJSON(strings.NewReader(v))
			if err != nil {
				return nil, fmt.Errorf("argument %s: %w", key, err)
			}
			args[key] = decoded
			continue
		}
		args[key] = v
	}
	return args, nil
}

func bodyArgs(w http.ResponseWriter, r *http.Request, maxBodyBytes int64) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	decoded, err := decodeJSON(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	args, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	return args, nil
}

// decodeJSON keeps numbers as json.Number so large keys survive intact.
func decodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON: trailing data")
	}
	return v, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := dataerr.Kind(err)
	status, known := statusForKind[kind]
	message := err.Error()
	if !known {
		status = http.StatusInternalServerError
		message = "internal error"
		logging.FromContext(r.Context()).Error("operation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
