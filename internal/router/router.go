package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicops/clinic-api/internal/handler"
	appointmentHandler "github.com/clinicops/clinic-api/internal/handler/appointment"
	auditHandler "github.com/clinicops/clinic-api/internal/handler/audit"
	billingHandler "github.com/clinicops/clinic-api/internal/handler/billing"
	casesheetHandler "github.com/clinicops/clinic-api/internal/handler/casesheet"
	healthHandler "github.com/clinicops/clinic-api/internal/handler/health"
	patientHandler "github.com/clinicops/clinic-api/internal/handler/patient"
	procedureHandler "github.com/clinicops/clinic-api/internal/handler/procedure"
	rbacHandler "github.com/clinicops/clinic-api/internal/handler/rbac"
	userHandler "github.com/clinicops/clinic-api/internal/handler/user"
	"github.com/clinicops/clinic-api/internal/middleware"
)

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	CORS           middleware.CORSConfig
}

func DefaultConfig() Config {
	return Config{
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		RequestTimeout: 30 * time.Second,
		CORS:           middleware.DefaultCORSConfig(),
	}
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	rbac   *middleware.RBACMiddleware

	healthH      *healthHandler.Handler
	userH        *userHandler.Handler
	rbacH        *rbacHandler.Handler
	patientH     *patientHandler.Handler
	appointmentH *appointmentHandler.Handler
	casesheetH   *casesheetHandler.Handler
	procedureH   *procedureHandler.Handler
	billingH     *billingHandler.Handler
	auditH       *auditHandler.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	rbac *middleware.RBACMiddleware,
	healthH *healthHandler.Handler,
	userH *userHandler.Handler,
	rbacH *rbacHandler.Handler,
	patientH *patientHandler.Handler,
	appointmentH *appointmentHandler.Handler,
	casesheetH *casesheetHandler.Handler,
	procedureH *procedureHandler.Handler,
	billingH *billingHandler.Handler,
	auditH *auditHandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	if err := handler.RegisterValidations(); err != nil {
		panic(err)
	}

	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORS),
	)

	rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:       engine,
		auth:         auth,
		rbac:         rbac,
		healthH:      healthH,
		userH:        userH,
		rbacH:        rbacH,
		patientH:     patientH,
		appointmentH: appointmentH,
		casesheetH:   casesheetH,
		procedureH:   procedureH,
		billingH:     billingH,
		auditH:       auditH,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	r.healthH.RegisterRoutes(api)
	r.userH.RegisterAuthRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	perm := handler.PermissionGuard(r.rbac.RequirePermission)

	r.userH.RegisterRoutes(protected, perm)
	r.rbacH.RegisterRoutes(protected, perm)
	r.patientH.RegisterRoutes(protected, perm)
	r.appointmentH.RegisterRoutes(protected, perm)
	r.casesheetH.RegisterRoutes(protected, perm)
	r.procedureH.RegisterRoutes(protected, perm)
	r.billingH.RegisterRoutes(protected, perm)
	r.auditH.RegisterRoutes(protected, perm)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
