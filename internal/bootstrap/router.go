package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	httpapi "github.com/GoSim-25-26J-441/studio-collab-backend/internal/api/http"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/api/http/routes"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	projecthttp "github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	Origins     []string
	Logger      zerolog.Logger
	DBPing      httpapi.Pinger
	RedisPing   httpapi.Pinger
	Session     gin.HandlerFunc
	Projects    *projecthttp.Handler
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Logger))
	if len(dep.Origins) > 0 {
		r.Use(corsFor(dep.Origins))
	}

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DBPing, dep.RedisPing)
	healthHandler.RegisterRoutes(r)

	routes.RegisterV1(r, routes.V1Deps{
		Session:  dep.Session,
		Projects: dep.Projects,
	})

	return r
}

func corsFor(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization",
			middleware.HeaderRequestID,
			auth.HeaderDeviceID, auth.HeaderViewerRole, auth.HeaderViewerName,
		},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
