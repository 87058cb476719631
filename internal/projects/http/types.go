package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/service"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/users"
)

// Handler bundles the dependencies for project channel HTTP endpoints.
type Handler struct {
	projects  *service.ProjectService
	lifecycle *service.LifecycleService
	chat      *service.ChatService
	files     *service.FileService
	profiles  users.Directory
	log       zerolog.Logger

	keepAlive   time.Duration
	resyncEvery time.Duration
}

// Deps are the services behind the handler. Profiles may be nil.
type Deps struct {
	Projects  *service.ProjectService
	Lifecycle *service.LifecycleService
	Chat      *service.ChatService
	Files     *service.FileService
	Profiles  users.Directory
	Logger    zerolog.Logger

	// ResyncEvery is the stream endpoint's safety poll; zero means one minute.
	ResyncEvery time.Duration
}

func New(d Deps) *Handler {
	if d.ResyncEvery <= 0 {
		d.ResyncEvery = time.Minute
	}
	return &Handler{
		projects:    d.Projects,
		lifecycle:   d.Lifecycle,
		chat:        d.Chat,
		files:       d.Files,
		profiles:    d.Profiles,
		log:         d.Logger.With().Str("component", "projects_http").Logger(),
		keepAlive:   15 * time.Second,
		resyncEvery: d.ResyncEvery,
	}
}

// actor identifies the caller. Without a session the device's UI picks the
// role it speaks as.
func actor(c *gin.Context) domain.Actor {
	role, err := domain.ParseRole(c.GetHeader(auth.HeaderViewerRole))
	if err != nil {
		role = domain.RoleClient
	}
	return service.ActorFor(c.Request.Context(), role, c.GetHeader(auth.HeaderViewerName))
}

type createReq struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline"`
}

type statusReq struct {
	Status         string  `json:"status"`
	ExpectedStatus *string `json:"expected_status"`
}

type designerReq struct {
	DesignerID string `json:"designer_id"`
}

type hoursReq struct {
	Hours *float64 `json:"hours"`
}

type sendReq struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type fileReq struct {
	FileName      string  `json:"file_name"`
	FileSizeBytes *int64  `json:"file_size_bytes"`
	FileURL       *string `json:"file_url"`
}
