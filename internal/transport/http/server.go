package http

import (
	"github.com/gin-gonic/gin"

	"docchat/internal/bootstrap"
	"docchat/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	documentHandler := handler.NewDocumentHandler(app.DocumentService, app.Config.Storage.MaxUploadBytes)
	chatHandler := handler.NewChatHandler(app.ChatService)

	router.GET("/healthz", healthHandler.Check)

	router.POST("/add_pdf", documentHandler.AddPDF)
	router.GET("/list_docs", documentHandler.ListDocs)
	router.DELETE("/remove_doc/:filename", documentHandler.RemoveDoc)

	router.GET("/sessions", chatHandler.ListSessions)
	router.GET("/sessions/:session_id/history", chatHandler.GetHistory)
	router.DELETE("/remove_session/:session_id", chatHandler.RemoveSession)
	router.POST("/chat", chatHandler.Chat)

	return router
}
