package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/resilience"
	"github.com/sells-group/finstat/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger/status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tc, err := initTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/companies", func(w http.ResponseWriter, r *http.Request) {
			var req model.Company
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, "name is required")
				return
			}
			company, err := env.Store.CreateCompany(r.Context(), req)
			if err != nil {
				zap.L().Error("create company failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "create company failed")
				return
			}
			writeJSON(w, http.StatusCreated, company)
		})

		// Fire-and-forget trigger: responds immediately with the task ID.
		r.Post("/companies/{companyID}/compile", func(w http.ResponseWriter, r *http.Request) {
			companyID := chi.URLParam(r, "companyID")
			taskID, err := worker.StartOrchestration(r.Context(), tc, cfg.Temporal.TaskQueue,
				worker.OrchestrationRequest{
					CompanyID:    companyID,
					LeaseTTLSecs: cfg.Worker.LeaseTTLSecs,
					MaxAttempts:  cfg.Worker.MaxAttempts,
				})
			if err != nil {
				zap.L().Error("start orchestration failed",
					zap.String("company_id", companyID), zap.Error(err))
				writeError(w, http.StatusConflict, "could not start orchestration")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		})

		r.Get("/tasks/{taskID}", func(w http.ResponseWriter, r *http.Request) {
			status, err := worker.TaskStatus(r.Context(), tc, chi.URLParam(r, "taskID"))
			if err != nil {
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			writeJSON(w, http.StatusOK, status)
		})

		r.Get("/companies/{companyID}/statements/{type}", func(w http.ResponseWriter, r *http.Request) {
			st, ok := model.ParseStatementType(chi.URLParam(r, "type"))
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown statement type")
				return
			}
			stmt, err := env.Store.GetStatement(r.Context(), chi.URLParam(r, "companyID"), st)
			if err != nil {
				if resilience.IsNotFound(err) {
					writeError(w, http.StatusNotFound, "statement not found")
					return
				}
				zap.L().Error("get statement failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "get statement failed")
				return
			}
			writeJSON(w, http.StatusOK, stmt)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
