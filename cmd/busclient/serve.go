package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/busclient/internal/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local gateway that applies session guards to HTTP entry points",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen_addr", defaultListenAddr, "HTTP listen address")
	serveCmd.Flags().Bool("enable_cors", false, "Enable CORS for browser clients on other origins")
	serveCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	_ = viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("enable_cors", serveCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", serveCmd.Flags().Lookup("cors_allowed_origins"))
	return serveCmd
}

func runServe(command *cobra.Command, arguments []string) error {
	clientConfig, configErr := clientConfigFrom(command)
	if configErr != nil {
		return configErr
	}
	runtime, runtimeErr := openRuntime(command.Context(), clientConfig)
	if runtimeErr != nil {
		return runtimeErr
	}
	defer func() { _ = runtime.Close() }()
	logger := runtime.logger

	router, routerErr := buildGatewayRouter(clientConfig, runtime)
	if routerErr != nil {
		return routerErr
	}

	server := &http.Server{
		Addr:              clientConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("gateway listening",
		zap.String("addr", clientConfig.ListenAddr),
		zap.String("backend", runtime.client.BaseURL()))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func buildGatewayRouter(clientConfig ClientConfig, runtime *clientRuntime) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(web.RequestLogger(runtime.logger))

	if clientConfig.EnableCORS {
		for _, origin := range clientConfig.InsecureCORSOrigins {
			runtime.logger.Warn("unsafe cors origin configured",
				zap.String("code", "web.cors.unsafe_origin"),
				zap.String("origin", origin))
		}
		router.Use(web.ConfigureCORS(clientConfig.CORSAllowedOrigins, router.Routes))
	}

	mountErr := web.MountGateway(router, web.Gateway{
		Client: runtime.client,
		Store:  runtime.store,
		Guard:  runtime.guard,
		Routes: runtime.routes,
		Buses:  runtime.buses,
		Logger: runtime.logger,
	})
	if mountErr != nil {
		return nil, mountErr
	}
	return router, nil
}
