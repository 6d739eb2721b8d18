package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// streams are flushed as they are written; the websocket is hijacked
var uncompressedPaths = []string{"/v1/sync/events", "/v1/sync/ws"}

func Gzip() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(uncompressedPaths))
}
