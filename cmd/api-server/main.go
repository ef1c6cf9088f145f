package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/caseflow-dev/caseflow/internal/logger"
	"github.com/caseflow-dev/caseflow/internal/server"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

func main() {
	dsn := flag.String("dsn", "", "database DSN")
	driver := flag.String("driver", "", "database driver (mysql|postgres|sqlite3, detected from DSN when empty)")
	tblPrefix := flag.String("table-prefix", util.GetEnv("TABLE_PREFIX", "cms_"), "storage table prefix (default cms_)")
	addr := flag.String("addr", ":8080", "listen address")
	policy := flag.String("field-policy", os.Getenv("FIELD_POLICY"), "path to field widget policy YAML")
	validateOnUpdate := flag.Bool("validate-on-update", false, "re-validate case data on field updates")
	openapi := flag.String("openapi", "", "write OpenAPI JSON and exit")
	flag.Parse()

	logger.Set(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if *dsn == "" {
		logger.L.Error("-dsn is required")
		os.Exit(1)
	}
	if *driver == "" {
		detected, err := util.DetectDriver(*dsn)
		if err != nil {
			logger.L.Error("detect driver", "dsn", *dsn, "err", err)
			os.Exit(1)
		}
		*driver = detected
	}

	db, err := sql.Open(*driver, *dsn)
	if err != nil {
		logger.L.Error("db open", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.DBConfig{
		Driver:           *driver,
		DSN:              *dsn,
		TablePrefix:      *tblPrefix,
		PolicyPath:       *policy,
		ValidateOnUpdate: *validateOnUpdate,
	}
	api := server.New(db, cfg)

	if *openapi != "" {
		data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
		if err != nil {
			logger.L.Error("marshal openapi", "err", err)
			os.Exit(1)
		}
		p := filepath.Clean(*openapi)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			logger.L.Error("write openapi", "err", err)
			os.Exit(1)
		}
		return
	}

	logger.L.Info("listening", "addr", *addr, "driver", *driver, "prefix", *tblPrefix)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.Adapter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}
}
