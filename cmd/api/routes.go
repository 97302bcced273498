package main

import (
	"log/slog"

	"outbound-dialer/internal/httpapi"
	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// newRouter builds the gin engine. Keep this file free of business logic; route
// definitions live in internal/httpapi.
func newRouter(log *slog.Logger, h httpapi.Handlers, authMW gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	httpapi.Register(r, h, authMW)
	return r
}
