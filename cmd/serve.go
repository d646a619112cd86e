package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/devserve/internal/config"
	"github.com/conneroisu/devserve/internal/logging"
	"github.com/conneroisu/devserve/internal/server"
	"github.com/conneroisu/devserve/internal/version"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server",
	Long: `Start the development server: transpile TypeScript on request, rewrite
imports to cache-busted URLs, and push live updates to connected browsers
when watched files change.

Examples:
  devserve serve                         # Serve the current directory
  devserve serve --root ./src --port 3000
  devserve serve --base /app             # Mount everything below /app
  devserve serve --proxy /api=http://localhost:9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().StringP("root", "r", ".", "Directory to serve")
	serveCmd.Flags().String("base", "", "Base path to mount the server under")
	serveCmd.Flags().Bool("open", false, "Open the browser after startup")
	serveCmd.Flags().Bool("silent", false, "Suppress non-error output")
	serveCmd.Flags().StringSlice("ignore", nil, "Watch ignore patterns (repeatable)")
	serveCmd.Flags().StringToString("proxy", nil, "Proxy rules as prefix=target pairs")
	serveCmd.Flags().String("env-prefix", "", "Expose environment variables with this prefix to the browser")
	serveCmd.Flags().Int("debounce", 100, "Watch debounce window in milliseconds")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.root", serveCmd.Flags().Lookup("root"))
	viper.BindPFlag("server.base", serveCmd.Flags().Lookup("base"))
	viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
	viper.BindPFlag("server.silent", serveCmd.Flags().Lookup("silent"))
	viper.BindPFlag("watch.ignore", serveCmd.Flags().Lookup("ignore"))
	viper.BindPFlag("proxy", serveCmd.Flags().Lookup("proxy"))
	viper.BindPFlag("env.prefix", serveCmd.Flags().Lookup("env-prefix"))
	viper.BindPFlag("watch.debounce_ms", serveCmd.Flags().Lookup("debounce"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(logging.Config{Silent: cfg.Server.Silent})

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "shutting down")
		}
		cancel()
	}()

	if !cfg.Server.Silent {
		printBanner(cfg)
	}

	return srv.Start(ctx)
}

// printBanner shows where the server is reachable, including the LAN address
// when binding beyond loopback.
func printBanner(cfg *config.Config) {
	fmt.Printf("devserve %s\n", version.GetShortVersion())
	fmt.Printf("Serving %s\n", cfg.Server.Root)
	fmt.Printf("  Local:   http://%s:%d%s/\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.Base)
	if cfg.Server.Host == "0.0.0.0" || cfg.Server.Host == "" {
		if lan := lanAddress(); lan != "" {
			fmt.Printf("  Network: http://%s:%d%s/\n", lan, cfg.Server.Port, cfg.Server.Base)
		}
	}
}

func lanAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String()
		}
	}
	return ""
}
