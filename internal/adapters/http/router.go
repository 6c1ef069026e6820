// Package http wires the gin router: the websocket endpoint plus a couple of
// plain read-only endpoints for health checks and version probes.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/adapters/ws"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/config"
)

func SetupRouter(cfg *config.Config, ctrl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.ServerVersion})
	})
	r.GET("/ws", ctrl.HandleWS)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
