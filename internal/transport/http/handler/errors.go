package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/repository"
	"docchat/internal/transport/http/response"
)

// writeError maps service errors onto HTTP status and envelope codes.
// Upstream failures carry their cause so callers can see what broke.
func writeError(c *gin.Context, err error, fallback string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "upload too large")
	case errors.Is(err, app.ErrNotPDF):
		response.Error(c, http.StatusBadRequest, response.CodeNotPDF, err.Error())
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
	case errors.Is(err, repository.ErrInvalidCursor):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidCursor, err.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, repository.ErrInvalidDocumentName):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, repository.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrUpstream), errors.Is(err, app.ErrPDFDecode):
		response.Error(c, http.StatusBadGateway, response.CodeUpstream, err.Error())
	case errors.Is(err, app.ErrAsyncDisabled):
		response.Error(c, http.StatusServiceUnavailable, response.CodeAsyncDisabled, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback+": "+err.Error())
	}
}
