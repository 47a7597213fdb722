package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"

	"github.com/clinicops/clinic-api/internal/config"
	"github.com/clinicops/clinic-api/internal/email"
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
	"github.com/clinicops/clinic-api/internal/repository/postgres"
	"github.com/clinicops/clinic-api/internal/router"
	appointmentService "github.com/clinicops/clinic-api/internal/service/appointment"
	auditService "github.com/clinicops/clinic-api/internal/service/audit"
	billingService "github.com/clinicops/clinic-api/internal/service/billing"
	casesheetService "github.com/clinicops/clinic-api/internal/service/casesheet"
	patientService "github.com/clinicops/clinic-api/internal/service/patient"
	procedureService "github.com/clinicops/clinic-api/internal/service/procedure"
	rbacService "github.com/clinicops/clinic-api/internal/service/rbac"
	userService "github.com/clinicops/clinic-api/internal/service/user"
	auditWorker "github.com/clinicops/clinic-api/internal/worker"
	"github.com/clinicops/clinic-api/pkg/auth"
	"github.com/clinicops/clinic-api/pkg/logger"
	"github.com/clinicops/clinic-api/pkg/metrics"
	"github.com/clinicops/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	roleRepo := postgres.NewRoleRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	caseSheetRepo := postgres.NewCaseSheetRepository(db)
	procedureRepo := postgres.NewProcedureRepository(db)
	billingRepo := postgres.NewBillingRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	userRepo := postgres.NewUserRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	auditSvc := auditService.NewService(auditRepo, outboxRepo, appLogger)
	rbacSvc := rbacService.NewService(roleRepo, auditSvc)
	notifier := email.NewSender(cfg.Email, patientRepo, appLogger)
	appointmentSvc := appointmentService.NewService(appointmentRepo, auditSvc, notifier)
	casesheetSvc := casesheetService.NewService(caseSheetRepo, rbacSvc, auditSvc)
	procedureSvc := procedureService.NewService(procedureRepo, auditSvc)
	billingSvc := billingService.NewService(billingRepo, auditSvc)
	patientSvc := patientService.NewService(patientRepo, auditSvc)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(0)
	userSvc := userService.NewService(userRepo, hasher, jwtSvc, auditSvc)

	// Metrics and middleware
	m := metrics.NewMetrics("clinic_api")
	authMW := middleware.NewAuthMiddleware(jwtSvc)
	rbacMW := middleware.NewRBACMiddleware(rbacSvc, m)

	// Handlers
	healthH := healthHandler.NewHandler(db)
	userH := userHandler.NewHandler(userSvc)
	rbacH := rbacHandler.NewHandler(rbacSvc)
	patientH := patientHandler.NewHandler(patientSvc)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc, m)
	casesheetH := casesheetHandler.NewHandler(casesheetSvc)
	procedureH := procedureHandler.NewHandler(procedureSvc, m)
	billingH := billingHandler.NewHandler(billingSvc, m)
	auditH := auditHandler.NewHandler(auditSvc)

	routerCfg := router.DefaultConfig()
	routerCfg.RateLimitRPS = cfg.Server.RateLimitRPS
	routerCfg.RateLimitBurst = cfg.Server.RateLimitBurst
	routerCfg.RequestTimeout = time.Duration(cfg.Server.TimeoutSeconds) * time.Second

	r := router.NewRouter(
		authMW, rbacMW,
		healthH, userH, rbacH, patientH, appointmentH, casesheetH, procedureH, billingH, auditH,
		routerCfg,
	)
	r.Setup()

	// Background retention worker for audit logs
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	cleanup := auditWorker.NewAuditCleanupWorker(auditRepo, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval, appLogger)
	go cleanup.Start(workerCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancelWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
