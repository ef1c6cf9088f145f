package server

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseflow-dev/caseflow/internal/api/handler"
	"github.com/caseflow-dev/caseflow/internal/casestore"
	"github.com/caseflow-dev/caseflow/internal/datatable"
	"github.com/caseflow-dev/caseflow/internal/fieldpolicy"
	"github.com/caseflow-dev/caseflow/internal/logger"
	"github.com/caseflow-dev/caseflow/internal/metrics"
	"github.com/caseflow-dev/caseflow/internal/server/middleware"
	"github.com/caseflow-dev/caseflow/internal/template"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// New wires the repositories and handlers into a huma API mounted on chi.
func New(db *sql.DB, cfg DBConfig) huma.API {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User"},
		AllowCredentials: true,
	}))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	dialect := util.DialectFromDriver(cfg.Driver)

	api := humachi.New(r, huma.DefaultConfig("Caseflow API", "1.0.0"))
	api.UseMiddleware(middleware.ExtractActor)
	api.UseMiddleware(middleware.MetricsMW)

	var policy *fieldpolicy.Store
	if cfg.PolicyPath != "" {
		policy = fieldpolicy.NewStore(cfg.PolicyPath, logger.L)
		if err := policy.Load(); err != nil {
			logger.L.Error("load field policy", "err", err)
		}
		go policy.Watch(context.Background())
	}

	templates := &template.Repo{DB: db, Driver: cfg.Driver, Dialect: dialect, TablePrefix: cfg.TablePrefix}
	tables := &datatable.Repo{DB: db, Driver: cfg.Driver, Dialect: dialect, TablePrefix: cfg.TablePrefix}
	cases := &casestore.Repo{DB: db, Driver: cfg.Driver, Dialect: dialect, TablePrefix: cfg.TablePrefix, Templates: templates, ValidateOnUpdate: cfg.ValidateOnUpdate}

	handler.RegisterTemplates(api, &handler.TemplateHandler{Repo: templates, Policy: policy})
	handler.RegisterDataTables(api, &handler.DataTableHandler{Repo: tables})
	handler.RegisterCases(api, &handler.CaseHandler{Repo: cases})
	handler.RegisterEvaluate(api, &handler.EvaluateHandler{Templates: templates, Tables: tables})

	if db != nil {
		metrics.StartFieldGauge(context.Background(), templates)
	}
	return api
}
