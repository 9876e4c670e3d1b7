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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dsa110/cartaview/internal/preview"
	"github.com/dsa110/cartaview/pkg/client"
	"github.com/dsa110/cartaview/pkg/raster"
	"github.com/dsa110/cartaview/pkg/viewer"
)

func viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Connect to a backend and stream an image",
		Long: `Connect to a CARTA-compatible backend, open the given image file and
serve the composited view over HTTP.

Examples:
  # View an image from a local backend
  cartaview view myimage.fits

  # Remote backend with an API key
  cartaview view --server ws://carta.example.org:3002 --api-key secret cube.fits

  # Custom canvas size and color mapping
  cartaview view --width 1024 --height 768 --colormap viridis --scale asinh image.fits`,
		Args: cobra.ExactArgs(1),
		RunE: runView,
	}

	cmd.Flags().StringP("server", "s", "ws://localhost:3002", "backend WebSocket URL")
	cmd.Flags().String("api-key", "", "backend API key")
	cmd.Flags().StringP("directory", "d", "", "remote directory containing the file")
	cmd.Flags().String("hdu", "", "HDU to open")
	cmd.Flags().Int("width", 800, "canvas width in pixels")
	cmd.Flags().Int("height", 600, "canvas height in pixels")
	cmd.Flags().String("colormap", raster.DefaultColorMap, "color map (gray|viridis|inferno|plasma|rainbow)")
	cmd.Flags().String("scale", "linear", "intensity scale (linear|log|sqrt|asinh)")
	cmd.Flags().StringP("listen", "l", "localhost:8080", "address for the snapshot/metrics HTTP server")
	cmd.Flags().String("log-level", "info", "log level (debug|info|warn|error)")

	viper.BindPFlag("server", cmd.Flags().Lookup("server"))
	viper.BindPFlag("api-key", cmd.Flags().Lookup("api-key"))
	viper.BindPFlag("directory", cmd.Flags().Lookup("directory"))
	viper.BindPFlag("hdu", cmd.Flags().Lookup("hdu"))
	viper.BindPFlag("width", cmd.Flags().Lookup("width"))
	viper.BindPFlag("height", cmd.Flags().Lookup("height"))
	viper.BindPFlag("colormap", cmd.Flags().Lookup("colormap"))
	viper.BindPFlag("scale", cmd.Flags().Lookup("scale"))
	viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level"))

	return cmd
}

func runView(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(viper.GetString("log-level")),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := client.DefaultConfig(viper.GetString("server"))
	config.APIKey = viper.GetString("api-key")
	config.Logger = logger
	c := client.NewWithConfig(config)

	v := viewer.New(c,
		viewer.WithLogger(logger),
		viewer.WithCanvasSize(viper.GetInt("width"), viper.GetInt("height")),
	)
	defer v.Close()

	ro := raster.DefaultRenderOptions()
	ro.ColorMap = viper.GetString("colormap")
	ro.ColorScale = raster.ParseColorScale(viper.GetString("scale"))
	v.SetRenderOptions(ro)

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Disconnect()

	file := args[0]
	if err := v.OpenFile(viper.GetString("directory"), file, viper.GetString("hdu")); err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	logger.Info("streaming", "file", file, "server", config.URL)

	srv := preview.NewServer(v, logger, prometheus.DefaultGatherer)
	httpServer := &http.Server{
		Addr:              viper.GetString("listen"),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("snapshot server listening",
		"addr", httpServer.Addr, "view", "/view.png", "metrics", "/metrics")
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
