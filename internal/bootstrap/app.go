package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/config"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth"
	authmw "github.com/GoSim-25-26J-441/studio-collab-backend/internal/auth/middleware"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/maintenance"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/fanout"
	projecthttp "github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/http"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/repository"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/service"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/users"
)

const serviceName = "studio-collab-backend"

// App holds every long-lived component of one process.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	DB       *Durable
	Redis    *redis.Client
	Bus      fanout.Bus
	Local    *repository.LocalPool
	Limiter  *service.SendLimiter
	Profiles *users.Cache

	Handler *projecthttp.Handler
	Session gin.HandlerFunc
}

// NewApp connects to whatever cfg configures. Without a database the app
// serves local device stores only; without Redis durable mode fans out
// within this process.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := OpenDB(ctx, DBOptions{DSN: cfg.Database.ConnString(), Migrate: cfg.Database.Migrate})
	if err != nil {
		return nil, err
	}
	a.DB = db

	rdb, err := OpenRedis(ctx, cfg.Redis.URL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb

	a.Local = repository.NewLocalPool(cfg.Local.Dir)
	a.Limiter = service.NewSendLimiter(cfg.Limits.SendRatePerSec, cfg.Limits.SendBurst)

	var (
		durable   repository.Store
		directory users.Directory
		recorder  authmw.UserRecorder
	)
	if db != nil {
		repo := users.NewRepo(db.SQL)
		a.Profiles = users.NewCache(repo, cfg.Limits.ProfileTTL)
		directory = a.Profiles
		recorder = repo
		durable = repository.NewPostgresStore(db.SQL)
	}
	a.Bus = newBus(db != nil, rdb, cfg, log)

	var verifier authmw.TokenVerifier
	if cfg.Firebase.CredentialsPath != "" {
		client, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			a.Close()
			return nil, err
		}
		verifier = client
	} else {
		log.Warn().Msg("firebase not configured; every request runs in local mode")
	}
	a.Session = authmw.OptionalSession(verifier, recorder, log)

	resolver := service.NewResolver(durable, a.Bus, a.Local)
	a.Handler = projecthttp.New(projecthttp.Deps{
		Projects:    service.NewProjectService(resolver, directory, log),
		Lifecycle:   service.NewLifecycleService(resolver, log),
		Chat:        service.NewChatService(resolver, a.Limiter, log),
		Files:       service.NewFileService(resolver, log),
		Profiles:    directory,
		Logger:      log,
		ResyncEvery: cfg.Limits.StreamResync,
	})
	return a, nil
}

// newBus picks the fan-out for durable mode. Without Redis a database-backed
// process still pushes live to its own viewers; other processes' writes reach
// them through the stream resync poll.
func newBus(durable bool, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) fanout.Bus {
	switch {
	case rdb != nil:
		return fanout.NewRedisBus(rdb, log, fanout.WithBlock(cfg.Redis.Block))
	case durable:
		log.Warn().Msg("redis not configured; live fan-out is limited to this process")
		return fanout.NewMemoryBus(0)
	default:
		return fanout.NoopBus{}
	}
}

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	deps := RouterDeps{
		ServiceName: serviceName,
		Version:     a.Config.App.Version,
		Origins:     a.Config.Server.AllowedOrigins,
		Logger:      a.Log,
		Session:     a.Session,
		Projects:    a.Handler,
	}
	if a.DB != nil {
		deps.DBPing = a.DB.Pool.Ping
	}
	if a.Redis != nil {
		rdb := a.Redis
		deps.RedisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return BuildRouter(deps)
}

// MaintenanceTasks describes the housekeeping this process owns.
func (a *App) MaintenanceTasks() maintenance.Tasks {
	t := maintenance.Tasks{
		LocalStores: a.Local,
		LocalIdle:   a.Config.Local.IdleTimeout,
		LimiterIdle: 10 * time.Minute,
	}
	if a.Limiter != nil {
		t.SendLimiter = a.Limiter
	}
	if a.Profiles != nil {
		t.Profiles = a.Profiles
	}
	if rb, ok := a.Bus.(*fanout.RedisBus); ok {
		t.Streams = rb
		t.StreamMaxLen = a.Config.Redis.StreamMaxLen
	}
	return t
}

// StreamTasks is the housekeeping that is shared state across processes:
// trimming the fan-out streams. Local stores, limiter buckets and the profile
// cache live in the API process and are maintained there.
func (a *App) StreamTasks() maintenance.Tasks {
	full := a.MaintenanceTasks()
	return maintenance.Tasks{Streams: full.Streams, StreamMaxLen: full.StreamMaxLen}
}

func (a *App) Close() {
	if a.Local != nil {
		if err := a.Local.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("close local stores")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.DB.Close()
}
