package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

var (
	validate     = validator.New()
	queryDecoder = newQueryDecoder()
)

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	return setResponseWithStatus(http.StatusOK, response, w)
}

func setResponseWithStatus(statusCode int, response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("setResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, err error, w http.ResponseWriter) {
	statusCode := models.HTTPStatus(err)
	if statusCode >= http.StatusInternalServerError {
		log.Errorf("%s: %v", errType, err)
	}

	resp := errorResponse{Type: errType, Msg: err.Error()}
	if encodeErr := setResponseWithStatus(statusCode, resp, w); encodeErr != nil {
		log.Errorf("%s: failed to write error response: %v", errType, encodeErr)
	}
}

// decodeRequest reads a JSON body into req and runs its validate tags.
func decodeRequest(r *http.Request, req interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return models.NewWebError(http.StatusBadRequest, "invalid json", fmt.Errorf("decodeRequest: %w", err))
	}

	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("decodeRequest: %v: %w", err, models.ErrValidation)
	}

	return nil
}

func decodeQuery(r *http.Request, dst interface{}) error {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		return fmt.Errorf("decodeQuery: %v: %w", err, models.ErrValidation)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("decodeQuery: %v: %w", err, models.ErrValidation)
	}

	return nil
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrValidation)
	}

	return uint(id), nil
}
