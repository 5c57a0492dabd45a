package api

import (
	"context"
	"net/http"

	"comicbot/bot"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// CommandHandler is the part of bot.Router the HTTP transport drives
type CommandHandler interface {
	Handle(ctx context.Context, req bot.Request, conv bot.Conversation) error
}

// Deps are the collaborators the HTTP routes need. Metrics may be nil.
type Deps struct {
	Commands CommandHandler
	Metrics  http.Handler
	Logger   log.Interface
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = log.Log
	}

	r := gin.New()
	// Minimal middleware: recovery; request logging goes through apex
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	// Register resource routers
	RegisterCommandRoutes(r, deps.Commands, deps.Logger)
	RegisterHealthRoutes(r)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	return r
}

func requestLogger(logger log.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("http request")
	}
}
