package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/lox/iotdash/internal/tsdb"
)

type ErrorCode string

const (
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	ErrorCodeDataSource          ErrorCode = "data_source_error"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, statusCode int) APIError {
	return APIError{Code: code, Message: message, StatusCode: statusCode}
}

// fetchError maps a fetch failure to a response. Data source failures are
// the upstream's fault, not ours.
func fetchError(err error) APIError {
	var dse *tsdb.DataSourceError
	if errors.As(err, &dse) {
		return NewAPIError(ErrorCodeDataSource, dse.Error(), http.StatusBadGateway)
	}
	return NewAPIError(ErrorCodeInternalServerError, err.Error(), http.StatusInternalServerError)
}

func respondWithError(w http.ResponseWriter, apiErr APIError) {
	respondWithJSON(w, apiErr.StatusCode, apiErr)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("encode JSON response: %v", err)
		}
	}
}
