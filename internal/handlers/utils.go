package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"media-converter/internal/convert"
	"media-converter/internal/logging"
)

const internalMessage = "Conversion failed due to an internal error."

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Class   string `json:"class"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, v)
}

// writeJSONError writes an error envelope with the given status and code.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	class := convert.ClientError
	if status >= http.StatusInternalServerError {
		class = convert.ServerError
	}
	writeJSONStatus(w, status, ErrorBody{Error: ErrorDetail{
		Class:   string(class),
		Code:    code,
		Message: message,
	}})
}

// writeConvertError maps a pipeline error onto the error envelope. Internal
// causes are never written to the client.
func writeConvertError(w http.ResponseWriter, err error) {
	kind := convert.KindOf(err)
	message := internalMessage
	var ce *convert.Error
	if errors.As(err, &ce) && ce.Message != "" {
		message = ce.Message
	}
	writeJSONStatus(w, kind.HTTPStatus(), ErrorBody{Error: ErrorDetail{
		Class:   string(kind.StatusClass()),
		Code:    kind.Code(),
		Message: message,
	}})
}
