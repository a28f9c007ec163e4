package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-em-checker/cmd/emchecker/config"
	"golang-em-checker/internal/reconciler"
	"golang-em-checker/internal/server"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reconciliations over HTTP",
	Long: `Serve starts an HTTP host for reconciliation runs.

Endpoints:
  GET  /api/health     liveness check
  POST /api/reconcile  multipart upload with "bill" and "em" files

Examples:
  emchecker serve --addr :8080
  curl -F bill=@bill.xlsx -F em=@em.csv http://localhost:8080/api/reconcile`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API (default: any)")

	viper.BindPFlag(config.KeyServerAddr, serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag(config.KeyServerOrigins, serveCmd.Flags().Lookup("allowed-origins"))
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	log := logger.GetGlobalLogger().WithComponent("serve")

	billConfig := config.CreateBillConfig(v)
	emConfig := config.CreateEMConfig(v)
	reconcilerConfig := config.CreateReconcilerConfig(v, false)
	if err := config.ValidateConfig(billConfig, emConfig, reconcilerConfig); err != nil {
		return err
	}

	s, err := config.LoadSchema(v)
	if err != nil {
		return err
	}

	service, err := reconciler.NewReconciliationService(billConfig, emConfig, s, reconcilerConfig)
	if err != nil {
		return err
	}

	if !viper.GetBool("verbose") {
		gin.SetMode(gin.ReleaseMode)
	}

	serverConfig := config.CreateServerConfig(v)
	srv := server.NewHTTPServer(service, serverConfig, logger.GetGlobalLogger())

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", serverConfig.Addr).Info("HTTP host listening")
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", serverConfig.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return apperrors.InternalError(apperrors.CodeUnexpectedError, "serve", err).
				WithSuggestion("Check that the listen address is free")
		}
		return nil
	case <-cmd.Context().Done():
	}

	log.Info("Shutting down HTTP host")
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "shutdown", err)
	}
	return nil
}
