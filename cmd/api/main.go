package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/config"
	appHTTP "github.com/cmlabs-hris/pos-payroll/internal/handler/http"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/database"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/jwt"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/lock"
	"github.com/cmlabs-hris/pos-payroll/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/pos-payroll/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolSize{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	payrollRepo := postgresql.NewPayrollRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	transactor := postgresql.NewTransactor(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	locker := lock.NewLocker(rdb, "payroll", cfg.Payroll.LockTTL)

	engine := payrollService.NewEngine(payrollService.Options{
		AmountDecimals:         cfg.Payroll.AmountDecimals,
		CycleTolerance:         cfg.Payroll.CycleTolerance,
		UnknownCurrency:        payrollService.UnknownCurrencyPolicy(cfg.Payroll.UnknownCurrency),
		IncrementFromDecrement: cfg.Payroll.IncrementFromDecrement,
		Workers:                cfg.Payroll.Workers,
	}, logger)
	payrollSvc := payrollService.NewPayrollService(transactor, payrollRepo, employeeRepo, attendanceRepo, engine, locker, logger)

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	router := appHTTP.NewRouter(JWTService, payrollHandler, appHTTP.RouterOptions{
		Logger:         logger,
		LogLevel:       cfg.SlogLevel(),
		AllowedOrigins: cfg.App.AllowedOrigins,
		ReportTimeout:  cfg.Payroll.ReportTimeout,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.App.ReadTimeout,
		// Report generation may run up to the report timeout.
		WriteTimeout: cfg.Payroll.ReportTimeout + 30*time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.App.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		logFormat := httplog.SchemaECS.Concise(!cfg.IsProduction())
		opts.ReplaceAttr = logFormat.ReplaceAttr
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("app", "pos-payroll"),
		slog.String("env", cfg.App.Env),
	)
}
