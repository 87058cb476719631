package routes

import (
	"github.com/gin-gonic/gin"

	projecthttp "github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/http"
)

type V1Deps struct {
	// Session resolves the caller: a verified token or a device id.
	Session  gin.HandlerFunc
	Projects *projecthttp.Handler
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")
	if dep.Session != nil {
		api.Use(dep.Session)
	}

	dep.Projects.Register(api.Group("/projects"))
	dep.Projects.RegisterProfiles(api.Group("/profiles"))
}
