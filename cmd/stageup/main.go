package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openmined/stageup/internal/logging"
	"github.com/openmined/stageup/internal/server"
	"github.com/openmined/stageup/internal/version"
)

var (
	cyan  = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stageup",
		Short:   "Staged upload server with resumable, retrying transfers",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			logger, closer, err := logging.Setup(logging.Options{
				Level: cfg.LogLevel,
				Dir:   cfg.LogDir,
			})
			if err != nil {
				return err
			}
			defer closer.Close()
			slog.SetDefault(logger)

			srv, err := server.New(cfg)
			if err != nil {
				return err
			}

			showHeader(cfg)
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", "", "Address to bind the server (default "+server.DefaultAddr+")")
	cmd.Flags().String("cert", "", "Path to the TLS certificate file")
	cmd.Flags().String("key", "", "Path to the TLS key file")
	cmd.Flags().StringP("upload-dir", "u", "", "Directory for staged uploads (default "+server.DefaultUploadDir+")")
	cmd.Flags().String("log-dir", "", "Directory for the log file, console only when empty")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml or json)")
	cmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before reading the environment")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.DetailedWithApp())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func showHeader(cfg *server.Config) {
	scheme := "http"
	if cfg.HTTP.TLS() {
		scheme = "https"
	}
	names := make([]string, 0, len(cfg.Destinations))
	for name := range cfg.Destinations {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Printf("%s %s\n", cyan(version.AppName), version.Short())
	fmt.Printf("listening on %s\n", green(scheme+"://"+cfg.HTTP.Addr))
	fmt.Printf("destinations %s\n\n", green(strings.Join(names, ", ")))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
