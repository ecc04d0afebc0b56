package handler

import (
	"github.com/gin-gonic/gin"

	"liveroom/backend/internal/apperr"
)

// ErrorResponse is the body of every failed REST call.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	msg := apperr.MessageOf(err)
	if code == apperr.CodeInternal {
		msg = "internal error"
	}
	c.JSON(apperr.HTTPStatus(code), ErrorResponse{Error: ErrorDetail{Code: string(code), Message: msg}})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	writeError(c, err)
}
