package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/cli"
	"github.com/noah-isme/sma-ledger-api/internal/repository"
	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	"github.com/noah-isme/sma-ledger-api/pkg/config"
	"github.com/noah-isme/sma-ledger-api/pkg/database"
	"github.com/noah-isme/sma-ledger-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(connect).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*cli.Runtime, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	clk, err := clock.New(cfg.Ledger.Timezone)
	if err != nil {
		logr.Warn("unknown ledger timezone, using UTC", zap.String("timezone", cfg.Ledger.Timezone), zap.Error(err))
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		_ = logr.Sync()
		return nil, nil, err
	}

	students := repository.NewStudentRepository(db)
	users := repository.NewUserRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), clk, nil, logr)
	activity := service.NewActivityService(repository.NewActivityRepository(db), clk, logr)

	rt := &cli.Runtime{
		Roster: service.NewRosterSync(repository.NewClassRepository(db), students, logr),
		Invoices: service.NewInvoiceService(repository.NewInvoiceRepository(db), students,
			service.NewUserGuardianResolver(users, logr), notifications, activity, clk, nil, logr),
		Tokens: service.NewAuthService(users, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		Activity: activity,
	}
	release := func() {
		_ = db.Close()
		_ = logr.Sync()
	}
	return rt, release, nil
}
