package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandlePanics logs the recovered value and answers with a bare 500.
// Panic details never reach the client.
func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		event := log.Error().Str("method", c.Request.Method).Str("path", c.Request.URL.Path)
		if err, ok := recovered.(error); ok {
			event = event.Err(err)
		} else {
			event = event.Interface("panic", recovered)
		}
		event.Msg("Recovered from panic")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}
