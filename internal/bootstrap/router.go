package bootstrap

import (
	"database/sql"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/worklane/worklane-backend/internal/admin"
	httpapi "github.com/worklane/worklane-backend/internal/api/http"
	"github.com/worklane/worklane-backend/internal/api/http/middleware"
	"github.com/worklane/worklane-backend/internal/auth"
	authmw "github.com/worklane/worklane-backend/internal/auth/middleware"
	"github.com/worklane/worklane-backend/internal/chat"
	escrowhttp "github.com/worklane/worklane-backend/internal/escrow/http"
	escrowrepo "github.com/worklane/worklane-backend/internal/escrow/repository"
	escrowservice "github.com/worklane/worklane-backend/internal/escrow/service"
	"github.com/worklane/worklane-backend/internal/notifications"
	ophttp "github.com/worklane/worklane-backend/internal/operations/http"
	oprepo "github.com/worklane/worklane-backend/internal/operations/repository"
	opservice "github.com/worklane/worklane-backend/internal/operations/service"
	"github.com/worklane/worklane-backend/internal/providerservices"
	"github.com/worklane/worklane-backend/internal/reviews"
	"github.com/worklane/worklane-backend/internal/storage/postgres"
	"github.com/worklane/worklane-backend/internal/users"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	DB             *pgxpool.Pool
	StatsDB        *sql.DB
	Redis          *redis.Client
	AuthClient     *fbauth.Client // nil in development: X-User-Id header fallback
	AllowedOrigins []string
	RateLimitRPS   float64
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(dep.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = dep.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-Id", "X-User-Id")
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestIDMiddleware())
	if dep.RateLimitRPS > 0 {
		r.Use(middleware.RateLimitMiddleware(rate.Limit(dep.RateLimitRPS), int(dep.RateLimitRPS*2)))
	}

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")

	if dep.AuthClient != nil {
		api.Use(authmw.FirebaseAuthMiddleware(dep.AuthClient))
	}

	userRepo := users.NewRepo(dep.DB)
	api.Use(auth.WithUser(userRepo))

	events := notifications.NewPublisher(dep.Redis)

	escrowSvc := escrowservice.NewEscrowService(escrowrepo.NewRepo(dep.DB), events)
	escrowhttp.New(escrowSvc).Register(api.Group("/escrows"))

	opSvc := opservice.NewOperationService(oprepo.NewRepo(dep.DB), events)
	ophttp.New(opSvc).Register(api.Group("/operations"))

	reviews.Register(api.Group("/reviews"), reviews.NewRepo(dep.DB))
	chat.Register(api.Group("/chat"), chat.NewRepo(dep.DB, events))
	providerservices.Register(api.Group("/services"), providerservices.NewRepo(dep.DB))

	if dep.StatsDB != nil {
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.RequireRole(users.RoleAdmin))
		admin.Register(adminGroup, postgres.NewStatsStore(dep.StatsDB))
	}

	return r
}
