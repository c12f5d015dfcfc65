package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-ledger-api/api/swagger"
	"github.com/noah-isme/sma-ledger-api/internal/handler"
	"github.com/noah-isme/sma-ledger-api/internal/middleware"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/repository"
	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/cache"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	"github.com/noah-isme/sma-ledger-api/pkg/config"
	"github.com/noah-isme/sma-ledger-api/pkg/database"
	"github.com/noah-isme/sma-ledger-api/pkg/jobs"
	"github.com/noah-isme/sma-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-ledger-api/pkg/middleware/requestid"
)

// @title SMA Ledger API
// @version 1.0.0
// @description Grade and attendance ledger, transfers and enrollment decisions for a school.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk, err := clock.New(cfg.Ledger.Timezone)
	if err != nil {
		logr.Warn("unknown ledger timezone, using UTC", zap.String("timezone", cfg.Ledger.Timezone), zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, cfg.Cache.Enabled)
	if err != nil {
		logr.Warn("redis unavailable, listings will not be cached", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	app := buildServices(cfg, db, redisClient, clk, metrics, logr)

	var queue *jobs.Queue
	if cfg.Notifications.Async {
		queue = jobs.NewQueue(service.JobTypeNotification, app.notifications.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
			OnGiveUp:   app.notifications.OnGiveUp,
		})
		// Workers outlive the signal context so Drain can flush pending notifications.
		queue.Start(context.Background())
		app.notifications.UseQueue(queue)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	stores := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		stores["redis"] = redisPinger{redisClient}
	}
	router := newRouter(cfg, app, metrics, stores, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	if queue != nil {
		if !queue.Drain(shutdownTimeout) {
			logr.Warn("notification queue not drained before shutdown")
		}
		queue.Stop()
	}
	return nil
}

type services struct {
	auth          *service.AuthService
	ledger        *service.LedgerService
	journal       *service.JournalQueryService
	activity      *service.ActivityService
	transfers     *service.TransferService
	enrollments   *service.EnrollmentService
	students      *service.StudentService
	classes       *service.ClassService
	invoices      *service.InvoiceService
	notifications *service.NotificationService
}

func buildServices(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, clk clock.Clock, metrics *service.MetricsService, logr *zap.Logger) services {
	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), clk, metrics, logr)
	activity := service.NewActivityService(repository.NewActivityRepository(db), clk, logr)
	guardians := service.NewUserGuardianResolver(userRepo, logr)
	roster := service.NewRosterSync(classRepo, studentRepo, logr)

	return services{
		auth: service.NewAuthService(userRepo, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		ledger: service.NewLedgerService(service.LedgerServiceParams{
			Classes:    classRepo,
			Students:   studentRepo,
			Subjects:   subjectRepo,
			Grades:     gradeRepo,
			Attendance: attendanceRepo,
			Guardians:  guardians,
			Notifier:   notifications,
			Activity:   activity,
			Cache:      cacheSvc,
			Metrics:    metrics,
			Clock:      clk,
			Validator:  validate,
			Logger:     logr,
			Config: service.LedgerServiceConfig{
				AverageThreshold: cfg.Ledger.AverageThreshold,
				BatchConcurrency: cfg.Ledger.BatchConcurrency,
			},
		}),
		journal:  service.NewJournalQueryService(attendanceRepo, gradeRepo, subjectRepo, clk, logr),
		activity: activity,
		transfers: service.NewTransferService(service.TransferServiceParams{
			Students:  studentRepo,
			Classes:   classRepo,
			Roster:    roster,
			Transfers: repository.NewTransferRepository(db),
			Guardians: guardians,
			Notifier:  notifications,
			Activity:  activity,
			Cache:     cacheSvc,
			Metrics:   metrics,
			Clock:     clk,
			Validator: validate,
			Logger:    logr,
			Config:    service.TransferServiceConfig{ExternalLabel: cfg.Transfers.ExternalLabel},
		}),
		enrollments: service.NewEnrollmentService(service.EnrollmentServiceParams{
			Enrollments: repository.NewEnrollmentRepository(db),
			Students:    studentRepo,
			Roster:      roster,
			Guardians:   guardians,
			Notifier:    notifications,
			Activity:    activity,
			Cache:       cacheSvc,
			Metrics:     metrics,
			Clock:       clk,
			Validator:   validate,
			Logger:      logr,
		}),
		students:      service.NewStudentService(studentRepo, roster, activity, cacheSvc, clk, validate, logr),
		classes:       service.NewClassService(classRepo, cacheSvc, validate, logr),
		invoices:      service.NewInvoiceService(repository.NewInvoiceRepository(db), studentRepo, guardians, notifications, activity, clk, validate, logr),
		notifications: notifications,
	}
}

func newRouter(cfg *config.Config, app services, metrics *service.MetricsService, stores map[string]handler.Pinger, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health"))
	r.Use(middleware.ResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, stores)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	journal := handler.NewJournalHandler(app.ledger, app.journal)
	activity := handler.NewActivityHandler(app.activity)
	transfers := handler.NewTransferHandler(app.transfers)
	enrollments := handler.NewEnrollmentHandler(app.enrollments)
	students := handler.NewStudentHandler(app.students)
	classes := handler.NewClassHandler(app.classes)
	invoices := handler.NewInvoiceHandler(app.invoices)
	inbox := handler.NewNotificationHandler(app.notifications)

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleDirector, models.RoleSchoolSecretary)
	office := middleware.RequireRoles(models.RoleDirector, models.RoleSchoolSecretary)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(app.auth))

	api.POST("/journal/attendance", staff, journal.Attendance)
	api.POST("/journal/grades", staff, journal.Grades)
	api.GET("/journal/attendance", staff, journal.ListAttendance)
	api.GET("/journal/grades", staff, journal.ListGrades)
	api.GET("/subjects", staff, journal.Subjects)

	api.GET("/transfers", office, transfers.List)
	api.POST("/transfers", office, transfers.Create)
	api.PUT("/transfers/:id", office, transfers.Update)
	api.DELETE("/transfers/:id", office, transfers.Delete)

	api.POST("/enrollments", middleware.RequireRoles(models.RoleGuardian, models.RoleDirector, models.RoleSchoolSecretary), enrollments.Submit)
	api.GET("/enrollments", office, enrollments.List)
	api.POST("/enrollments/:id/decision", office, enrollments.Decide)

	api.GET("/students", staff, students.List)
	api.GET("/students/:id", staff, students.Get)
	api.POST("/students", office, students.Create)
	api.PATCH("/students/:id", office, students.Update)
	api.DELETE("/students/:id", office, students.Delete)

	api.GET("/classes", staff, classes.List)
	api.GET("/classes/:id", staff, classes.Get)
	api.POST("/classes", office, classes.Create)
	api.PUT("/classes/:id", office, classes.Update)
	api.DELETE("/classes/:id", office, classes.Delete)

	api.GET("/invoices", office, invoices.List)
	api.POST("/invoices", office, invoices.Create)
	api.PUT("/invoices/:id", office, invoices.Update)
	api.DELETE("/invoices/:id", office, invoices.Delete)

	api.GET("/activity", middleware.RequireRoles(models.RoleDirector), activity.List)

	api.GET("/notifications", inbox.List)
	api.PATCH("/notifications/:id/read", inbox.MarkRead)

	return r
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
