package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"buchhaltung/internal/api"
	"buchhaltung/internal/document"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/reconciliation"
	"buchhaltung/internal/statement"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API for the bookkeeping UI",
	Long: `Serve the statement import, document import, matching and wizard
endpoints under /api on HTTP_ADDR. Ctrl-C shuts the server down and ends all
open wizard sessions.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Bool("debug", false, "Run gin in debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	debug, _ := cmd.Flags().GetBool("debug")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := commandContext(0, log)
	defer cancel()

	repos, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	provider, err := newProvider(cfg, log)
	if err != nil {
		return err
	}
	extractor, release := newTextExtractor(ctx, cfg, log)
	defer release()

	engine := newEngine(cfg, repos)
	handler := api.NewHandler(ctx, cfg, api.Services{
		Statements: statement.NewParser(extractor),
		Importer:   statement.NewImporter(repos.transactions),
		Documents:  document.NewService(repos.customers, repos.invoices),
		Engine:     engine,
		Wizard:     reconciliation.NewWizard(engine, newRecommender(provider)),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Bool("archive", cfg.Paperless.Enabled()).
			Bool("ai", provider != nil).
			Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	log.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
		return err
	}
	return nil
}
