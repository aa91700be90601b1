package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/pipeline"
	"github.com/clarusrisk/diligence-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for lookups and checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newAPIMux(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newAPIMux builds the API routes. Split out so handler tests can exercise
// the mux without binding a port.
func newAPIMux(ctx context.Context, env *checkEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/companies/lookup", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			pipeline.LookupInput
			Async bool `json:"async"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.VATNumber == "" && req.Name == "" {
			writeError(w, http.StatusBadRequest, "vat_number or name is required")
			return
		}

		company, created, err := env.Runner.Lookup(r.Context(), req.LookupInput)
		if err != nil {
			zap.L().Error("lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}

		if req.Async {
			// Run the check detached from the request; ctx is the server
			// lifetime, not the request's.
			go func() {
				if _, err := env.Runner.RunFullCheck(ctx, company.ID); err != nil {
					zap.L().Error("async check failed",
						zap.String("company_id", company.ID), zap.Error(err))
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]any{
				"company": company,
				"created": created,
				"status":  "accepted",
			})
			return
		}

		check, err := env.Runner.RunFullCheck(r.Context(), company.ID)
		if err != nil {
			zap.L().Error("check failed", zap.String("company_id", company.ID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "check failed")
			return
		}
		company, _ = env.Store.GetCompany(r.Context(), company.ID)
		writeJSON(w, http.StatusOK, map[string]any{
			"company": company,
			"created": created,
			"check":   check,
		})
	})

	mux.HandleFunc("GET /api/companies", func(w http.ResponseWriter, r *http.Request) {
		companies, err := env.Store.ListCompanies(r.Context(), store.CompanyFilter{
			Query: r.URL.Query().Get("q"),
		})
		if err != nil {
			zap.L().Error("list companies failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
	})

	mux.HandleFunc("GET /api/companies/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		company, err := env.Store.GetCompany(r.Context(), id)
		if err != nil {
			zap.L().Error("get company failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "load failed")
			return
		}
		if company == nil {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}
		checks, err := env.Store.GetCompanyChecks(r.Context(), id, 0)
		if err != nil {
			zap.L().Error("list checks failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "load failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"company": company,
			"checks":  checks,
		})
	})

	mux.HandleFunc("GET /api/companies/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		events, err := env.Store.ListEvents(r.Context(), r.PathValue("id"), 0)
		if err != nil {
			zap.L().Error("list events failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "load failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	})

	mux.HandleFunc("POST /api/companies/{id}/check", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		check, err := env.Runner.RunFullCheck(r.Context(), id)
		if err != nil {
			zap.L().Error("check failed", zap.String("company_id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, "check failed")
			return
		}
		if check == nil {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"check": check})
	})

	return mux
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
