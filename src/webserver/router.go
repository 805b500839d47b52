package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func attachRoutes(r *gin.Engine, cfg Config, deps Deps) {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	cmdH := NewCommands(deps.Submitter, cfg.ReplyTimeout)
	propH := NewProposals(deps.Reader)

	v1 := r.Group("/v1")
	{
		v1.POST("/commands", cmdH.Run)
		v1.GET("/proposals", propH.List)
		v1.GET("/proposals/:id", propH.Get)
	}

	r.GET("/healthz", health(deps.Checks))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
