package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewApi registers the editor routes on router.
func NewApi(router *gin.Engine, editor Editor, opts ...HandlerOption) {
	h := NewEditorHandler(editor, opts...)

	editorV1 := router.Group("editor/v1")
	{
		editorV1.GET("/state", h.GetState)
		editorV1.POST("/assets", h.PostAsset)
		editorV1.POST("/process", h.PostProcess)
		editorV1.POST("/undo", h.PostUndo)
		editorV1.POST("/redo", h.PostRedo)
		editorV1.POST("/reset", h.PostReset)
		editorV1.POST("/keys", h.PostKey)
		editorV1.GET("/download", h.GetDownload)
		editorV1.GET("/blobs/:id", h.GetBlob)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
