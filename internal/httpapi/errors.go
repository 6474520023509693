package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"regstudio/internal/guard"
	"regstudio/internal/notes"
	"regstudio/internal/providers"
	"regstudio/internal/settings"
	"regstudio/internal/storage"
)

type apiError struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Provider string `json:"provider,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// classify maps a domain error to a status code and a stable code string.
func classify(err error) (int, apiError) {
	var (
		missing *providers.MissingCredentialError
		perr    *providers.ProviderError
		halted  *providers.GenerationHaltedError
		terr    *providers.TransportError
	)
	body := apiError{Error: err.Error()}

	switch {
	case errors.As(err, &missing):
		body.Code, body.Provider = "missing_credential", string(missing.Provider)
		return http.StatusBadRequest, body
	case errors.As(err, &perr):
		body.Code, body.Provider = "provider_error", string(perr.Provider)
		return http.StatusBadGateway, body
	case errors.As(err, &halted):
		body.Code, body.Provider = "generation_halted", string(halted.Provider)
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &terr):
		body.Code, body.Provider = "transport_error", string(terr.Provider)
		return http.StatusBadGateway, body
	case errors.Is(err, notes.ErrEmptyOutput):
		body.Code = "empty_output"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, notes.ErrEmptyInput):
		body.Code = "empty_input"
		return http.StatusBadRequest, body
	case errors.Is(err, guard.ErrBusy):
		body.Code = "busy"
		return http.StatusConflict, body
	case errors.Is(err, storage.ErrNotFound):
		body.Code = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, notes.ErrUnknownFeature):
		body.Code = "unknown_feature"
		return http.StatusNotFound, body
	case errors.Is(err, notes.ErrUnknownModel),
		errors.Is(err, notes.ErrInvalidMaxTokens),
		errors.Is(err, notes.ErrNoKeywords),
		errors.Is(err, notes.ErrInvalidColor),
		errors.Is(err, settings.ErrUnknownProvider),
		errors.Is(err, settings.ErrEmptyKey),
		errors.Is(err, providers.ErrUnsupportedProvider):
		body.Code = "invalid_request"
		return http.StatusBadRequest, body
	default:
		body.Error, body.Code = "internal error", "internal"
		return http.StatusInternalServerError, body
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, apiError{Error: err.Error(), Code: "invalid_request"})
}
