package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	webAdapter "github.com/DudssFnx/zeno-ecommerce-sub001/internal/adapters/web"
	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/app"
	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/config"
	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"
	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/db"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.ConnectionString())
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderService := core.NewOrderService(pool, ledger, core.Policy{
		AllowEditWhileReserved: cfg.Engine.AllowEditWhileReserved,
	})
	lifecycleService := core.NewLifecycleService(pool, ledger, cfg.Engine.ConflictRetries)
	receivablesService := core.NewReceivablesService(pool)
	reportingService := core.NewReportingService(pool)

	svc := app.NewAppService(orderService, lifecycleService, receivablesService, ledger, reportingService)
	handler := webAdapter.NewHandler(svc, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	log.Info("server starting", "app", cfg.App.Name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
