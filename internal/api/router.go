package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-feed-be/internal/api/handlers"
	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/isdelr/ender-feed-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Users      services.UserServiceProvider
	Graph      services.GraphServiceProvider
	Content    services.ContentServiceProvider
	Engagement services.EngagementAggregator
	Feed       services.FeedAssembler
	Events     services.EventServiceProvider
}

// Options tunes the router.
type Options struct {
	CORSOrigins []string
	FeedTimeout time.Duration
}

// NewRouter creates and configures a new Chi router wrapped in OpenTelemetry
// instrumentation.
func NewRouter(hub *websocket.Hub, svc Services, opts Options) http.Handler {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(svc.Users, svc.Graph)
	views := services.NewEngagementViewService(svc.Content, svc.Engagement)
	postHandler := handlers.NewPostHandler(svc.Content, views)
	likeHandler := handlers.NewLikeHandler(svc.Content, views)
	commentHandler := handlers.NewCommentHandler(svc.Content, views)
	feedHandler := handlers.NewFeedHandler(svc.Feed, opts.FeedTimeout)
	eventHandler := handlers.NewEventHandler(svc.Events)
	adminHandler := handlers.NewAdminHandler(svc.Graph)
	wsHandler := handlers.NewWebSocketHandler(hub, svc.Users)

	r.Handle("/metrics", promhttp.Handler())

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws/feed/{userId}", wsHandler.Serve)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Post("/follow/{targetId}", userHandler.Follow)
				r.Post("/unfollow/{targetId}", userHandler.Unfollow)
				r.Get("/following", userHandler.Following)
				r.Get("/following/count", userHandler.FollowingCount)
				r.Get("/followers", userHandler.Followers)
				r.Get("/followers/count", userHandler.FollowersCount)
			})
		})

		r.Get("/feed/{userId}", feedHandler.Get)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.GetAll)
			r.Post("/", postHandler.Create)
			r.Get("/{id}", postHandler.Get)
			r.Delete("/{id}", postHandler.Delete)
			r.Get("/{id}/likers", postHandler.Likers)
			r.Get("/{id}/commenters", postHandler.Commenters)
		})

		r.Route("/likes/{postId}", func(r chi.Router) {
			r.Get("/", likeHandler.GetByPost)
			r.Get("/count", likeHandler.Count)
			r.Post("/users/{userId}", likeHandler.Add)
			r.Delete("/users/{userId}", likeHandler.Remove)
			r.Get("/users/{userId}/has-liked", likeHandler.HasLiked)
		})

		// {id} is a post ID except on DELETE, where it names the comment.
		r.Route("/comments/{id}", func(r chi.Router) {
			r.Get("/", commentHandler.GetByPost)
			r.Post("/", commentHandler.Add)
			r.Get("/count", commentHandler.Count)
			r.Delete("/", commentHandler.Delete)
		})

		r.Get("/events", eventHandler.GetRecent)
		r.Post("/admin/graph/reconcile", adminHandler.Reconcile)
	})

	return otelhttp.NewHandler(r, "http.server")
}
