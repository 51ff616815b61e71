package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/catmaid/backend/internal/handler/chat"
	"github.com/zhouzirui/catmaid/backend/internal/handler/persona"
	"github.com/zhouzirui/catmaid/backend/internal/handler/relay"
	middlewarePkg "github.com/zhouzirui/catmaid/backend/internal/middleware"
	personaModel "github.com/zhouzirui/catmaid/backend/internal/model/persona"
	"github.com/zhouzirui/catmaid/backend/internal/service/history"
	statusService "github.com/zhouzirui/catmaid/backend/internal/service/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/turn"
	"github.com/zhouzirui/catmaid/backend/pkg/utils"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the routes need.
type Deps struct {
	Personas     personaModel.Store
	Turns        *turn.Processor
	Statuses     *statusService.Service
	History      *history.Service
	Store        Pinger
	HistoryLimit int
	BotID        string
	CORSOrigins  []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(d.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// OneBot 网关通过 websocket 推送消息事件
	relay.New(d.Turns, d.BotID).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		persona.New(d.Personas).RegisterRoutes(api)
		chat.New(d.Turns, d.Statuses, d.History, d.HistoryLimit).RegisterRoutes(api)
	})

	return r
}
