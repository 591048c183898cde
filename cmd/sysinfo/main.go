package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/go-tangra/go-tangra-sysinfo/cmd/sysinfo/assets"
	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
	"github.com/go-tangra/go-tangra-sysinfo/internal/config"
	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
	"github.com/go-tangra/go-tangra-sysinfo/internal/server"
	"github.com/go-tangra/go-tangra-sysinfo/internal/tools"
	"github.com/go-tangra/go-tangra-sysinfo/internal/winsvc"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var cfgFile string

const serviceName = "SysInfo"

var rootCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "System Information - MCP server with read-only host diagnostics",
	Long: `sysinfo exposes diagnostic tools (hardware, display, network, storage,
devices, user environment, processes, open ports) to MCP clients.

Run without a subcommand to start the MCP server. It speaks stdio unless
PORT is set, in which case it serves streamable HTTP on HOST:PORT.`,
	SilenceUsage: true,
	RunE:         runMCP,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and gRPC health endpoint",
	RunE:  runServe,
}

var reportCmd = &cobra.Command{
	Use:   "report [tool]",
	Short: "Print one tool's report to stdout (default: full report)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE:  runTools,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sysinfo %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage Windows service installation",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install 'sysinfo serve' as a Windows service",
	RunE:  runServiceInstall,
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the Windows service",
	RunE:  runServiceUninstall,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/sysinfo.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-strategy timeout (default 5s)")
	rootCmd.PersistentFlags().Bool("no-external-ip", false, "skip the external IP lookup")

	serveCmd.Flags().String("http-listen", "", "HTTP listen address (default :9551)")
	serveCmd.Flags().String("grpc-listen", "", "gRPC listen address (default :9550)")
	serveCmd.Flags().String("api-secret", "", "X-API-Key for the HTTP API (empty = no auth)")

	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serviceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if v, _ := flags.GetDuration("timeout"); v > 0 {
		cfg.StrategyTimeout = v
	}
	if v, _ := flags.GetBool("no-external-ip"); v {
		cfg.ExternalIP.Enabled = false
	}
	if flags.Lookup("http-listen") != nil {
		if v, _ := flags.GetString("http-listen"); v != "" {
			cfg.HTTPListen = v
		}
		if v, _ := flags.GetString("grpc-listen"); v != "" {
			cfg.GRPCListen = v
		}
		if v, _ := flags.GetString("api-secret"); v != "" {
			cfg.APISecret = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRegistry(cfg *config.Config) *tools.Registry {
	c := collector.New(cfg.CollectorOptions())
	logger.Server.Info().Str("platform", c.Platform().String()).Msg("platform detected")
	return tools.New(c)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s := server.NewMCPServer(newRegistry(cfg), version)

	ctx, stop := signalContext()
	defer stop()

	if addr := cfg.MCPAddr(); addr != "" {
		return server.ServeMCPHTTP(ctx, s, addr)
	}
	return server.ServeMCPStdio(ctx, s, os.Stdin, os.Stdout)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if winsvc.IsWindowsService() {
		if w, err := winsvc.EventLogWriter(serviceName); err == nil {
			if err := logger.SetupWriter(w, cfg.LogLevel, "json"); err != nil {
				return err
			}
		}
		reg := newRegistry(cfg)
		return winsvc.RunService(serviceName, func(ctx context.Context) error {
			return server.Run(ctx, cfg, reg, assets.OpenAPIData)
		})
	}

	ctx, stop := signalContext()
	defer stop()

	return server.Run(ctx, cfg, newRegistry(cfg), assets.OpenAPIData)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	name := tools.FullReport
	if len(args) == 1 {
		name = args[0]
	}

	ctx, stop := signalContext()
	defer stop()

	text, err := newRegistry(cfg).Run(ctx, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func runTools(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, t := range tools.New(nil).Tools() {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
	}
	return w.Flush()
}

func runServiceInstall(_ *cobra.Command, _ []string) error {
	args := []string{"serve"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if err := winsvc.Install(
		serviceName,
		"System Information",
		"Serves read-only host diagnostics over HTTP.",
		args,
	); err != nil {
		return err
	}
	logger.Server.Info().Str("service", serviceName).Msg("service installed")
	return nil
}

func runServiceUninstall(_ *cobra.Command, _ []string) error {
	if err := winsvc.Uninstall(serviceName); err != nil {
		return err
	}
	logger.Server.Info().Str("service", serviceName).Msg("service uninstalled")
	return nil
}
