package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
)

// maxBodyBytes caps request bodies; report content is limited separately
const maxBodyBytes = 1 << 20

// JSONResponse sends a JSON response. A nil top-level slice is encoded as []
// so clients never have to special-case null lists.
func JSONResponse(w http.ResponseWriter, data interface{}) error {
	if v := reflect.ValueOf(data); v.Kind() == reflect.Slice && v.IsNil() {
		data = reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// decodeJSON reads a single JSON object from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return errors.New(ErrMsgInvalidRequestBody)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New(ErrMsgInvalidRequestBody)
	}
	return nil
}
