package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/transport/http/response"
)

const uploadField = "file"

type DocumentHandler struct {
	documentService *app.DocumentService
	maxUploadBytes  int64
}

func NewDocumentHandler(documentService *app.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, maxUploadBytes: maxUploadBytes}
}

// AddPDF accepts a multipart upload in the "file" field. With ?async=true the
// conversion is queued and the handler answers 202.
func (h *DocumentHandler) AddPDF(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile(uploadField)
	if err != nil {
		writeError(c, badRequest(err, "missing file field"), "read upload failed")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "open upload failed")
		return
	}
	defer file.Close()

	input := app.UploadInput{FileName: header.Filename, Data: file}
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		result, err := h.documentService.Enqueue(c.Request.Context(), input)
		if err != nil {
			writeError(c, err, "queue upload failed")
			return
		}
		response.JSON(c, http.StatusAccepted, result)
		return
	}

	result, err := h.documentService.Upload(c.Request.Context(), input)
	if err != nil {
		writeError(c, err, "store document failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) ListDocs(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	page, err := h.documentService.ListDocuments(c.Query("cursor"), limit)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, page)
}

func (h *DocumentHandler) RemoveDoc(c *gin.Context) {
	name := c.Param("filename")
	if err := h.documentService.RemoveDocument(name); err != nil {
		writeError(c, err, "remove document failed")
		return
	}
	response.OK(c, gin.H{"message": name + " removed."})
}
