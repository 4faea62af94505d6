package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tileproxy/gateway"
	"tileproxy/logger"
	"tileproxy/routing"
)

const shutdownTimeout = 30 * time.Second

// serveFlags - переопределения конфигурации из командной строки
type serveFlags struct {
	listenAddr      string
	tlsCert         string
	tlsKey          string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	useMock         bool
	logLevel        string
	metricsAddr     string
	disableMetrics  bool
	upstreamTimeout time.Duration
	userAgent       string
	enableArchive   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "tileproxy",
		Short:         "Tile proxy for the FRA Atlas map portal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (YAML)")

	root.AddCommand(
		newServeCommand(&configFile),
		newResolveCommand(&configFile),
		newConfigCommand(),
	)
	return root
}

func newServeCommand(configFile *string) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tile proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadOrDefault(*configFile)
			if err != nil {
				return err
			}
			applyCommandLineOverrides(config, flags)
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(config)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.listenAddr, "listen", "", "Listen address (overrides config)")
	f.StringVar(&flags.tlsCert, "tls-cert", "", "TLS certificate file (overrides config)")
	f.StringVar(&flags.tlsKey, "tls-key", "", "TLS key file (overrides config)")
	f.DurationVar(&flags.readTimeout, "read-timeout", 0, "Read timeout (overrides config)")
	f.DurationVar(&flags.writeTimeout, "write-timeout", 0, "Write timeout (overrides config)")
	f.BoolVar(&flags.useMock, "mock", false, "Serve generated tiles instead of calling providers (overrides config)")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error) (overrides config)")
	f.StringVar(&flags.metricsAddr, "metrics-listen", "", "Metrics server listen address (overrides config)")
	f.BoolVar(&flags.disableMetrics, "disable-metrics", false, "Disable metrics server (overrides config)")
	f.DurationVar(&flags.upstreamTimeout, "upstream-timeout", 0, "Timeout for a single provider request (overrides config)")
	f.StringVar(&flags.userAgent, "user-agent", "", "User-Agent sent to providers (overrides config)")
	f.BoolVar(&flags.enableArchive, "archive", false, "Enable S3 tile archive (overrides config)")
	return cmd
}

func newResolveCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <path>",
		Short:   "Print the upstream URL for a tile path",
		Example: "  tileproxy resolve /tiles/esri/7/91/55.png",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Вывод команды не смешивается с информационными логами
			logger.SetGlobalLevel(logger.WARN)

			config, err := loadOrDefault(*configFile)
			if err != nil {
				return err
			}

			req, err := gateway.NewRequestParser().ParsePath(args[0])
			if err != nil {
				return err
			}
			upstreamURL, err := routing.NewResolver(&config.Routing, nil).Resolve(req)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), upstreamURL)
			return nil
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <file>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DefaultAppConfig().SaveConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// loadOrDefault загружает конфигурацию из файла или берет значения по умолчанию
func loadOrDefault(configFile string) (*AppConfig, error) {
	if configFile == "" {
		logger.Info("Config file not provided, using defaults")
		return DefaultAppConfig(), nil
	}

	logger.Info("Loading configuration from file: %s", configFile)
	config, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return config, nil
}

func serve(config *AppConfig) error {
	level := logger.ParseLogLevel(config.Logging.Level)
	logger.SetGlobalLevel(level)
	defer logger.Sync()

	logger.Info("Tile proxy starting...")
	logger.Info("Log level: %s", level.String())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := NewApp(config, reg)
	if err != nil {
		return err
	}

	gatewayConfig := config.ToGatewayConfig()
	logger.Info("Configuration:")
	logger.Info("  Listen Address: %s", gatewayConfig.ListenAddress)
	logger.Info("  Read Timeout: %v", gatewayConfig.ReadTimeout)
	logger.Info("  Write Timeout: %v", gatewayConfig.WriteTimeout)
	logger.Info("  TLS Enabled: %t", gatewayConfig.TLSCertFile != "")
	if config.Monitoring.Enabled {
		logger.Info("  Metrics: %s%s", config.Monitoring.ListenAddress, config.Monitoring.MetricsPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

// applyCommandLineOverrides применяет переопределения из командной строки
func applyCommandLineOverrides(config *AppConfig, flags serveFlags) {
	if flags.listenAddr != "" {
		config.Server.ListenAddress = flags.listenAddr
		logger.Debug("Override: server.listen_address = %s", flags.listenAddr)
	}

	if flags.tlsCert != "" {
		config.Server.TLSCertFile = flags.tlsCert
		logger.Debug("Override: server.tls_cert_file = %s", flags.tlsCert)
	}

	if flags.tlsKey != "" {
		config.Server.TLSKeyFile = flags.tlsKey
		logger.Debug("Override: server.tls_key_file = %s", flags.tlsKey)
	}

	if flags.readTimeout > 0 {
		config.Server.ReadTimeout = flags.readTimeout
		logger.Debug("Override: server.read_timeout = %v", flags.readTimeout)
	}

	if flags.writeTimeout > 0 {
		config.Server.WriteTimeout = flags.writeTimeout
		logger.Debug("Override: server.write_timeout = %v", flags.writeTimeout)
	}

	if flags.useMock {
		config.Server.UseMock = true
		logger.Debug("Override: server.use_mock = true")
	}

	if flags.logLevel != "" {
		config.Logging.Level = flags.logLevel
		logger.Debug("Override: logging.level = %s", flags.logLevel)
	}

	if flags.metricsAddr != "" {
		config.Monitoring.ListenAddress = flags.metricsAddr
		logger.Debug("Override: monitoring.listen_address = %s", flags.metricsAddr)
	}

	if flags.disableMetrics {
		config.Monitoring.Enabled = false
		logger.Debug("Override: monitoring.enabled = false")
	}

	if flags.upstreamTimeout > 0 {
		config.Fetch.Timeout = flags.upstreamTimeout
		logger.Debug("Override: fetch.timeout = %v", flags.upstreamTimeout)
	}

	if flags.userAgent != "" {
		config.Fetch.UserAgent = flags.userAgent
		logger.Debug("Override: fetch.user_agent = %s", flags.userAgent)
	}

	if flags.enableArchive {
		config.Archive.Enabled = true
		logger.Debug("Override: archive.enabled = true")
	}
}
