package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wcrbrm/traefik-guard/internal/geo"
	"github.com/wcrbrm/traefik-guard/internal/httpapi"
	"github.com/wcrbrm/traefik-guard/internal/state"
	"github.com/wcrbrm/traefik-guard/internal/tags"
)

var (
	storagePath  string
	nsg          string
	ruleProvider string
	rulesDB      string
	logLevel     string
	logFile      string
	maxmindPath  string
	listenAddr   string
	ipSource     string
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "traefik-guard",
		Short: "Edge access control by visitor geography",
		Long: `traefik-guard keeps named security groups of access rules and answers
	whether a visitor passes, is blocked or is redirected, as a CLI or as a
	forward-auth HTTP service.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(setupLogger(logLevel, logFile))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&storagePath, "storage", envOr("TRAEFIK_GUARD_STORAGE_PATH", "./data"), "Storage path, where *.rules.txt files are stored")
	pf.StringVar(&nsg, "nsg", "default", "Name of the security group")
	pf.StringVar(&ruleProvider, "provider", "dir", "Rule provider: 'dir' or 'mariadb'")
	pf.StringVar(&rulesDB, "db", os.Getenv("TRAEFIK_GUARD_DB"), "Database connection string (for 'mariadb' provider)")
	pf.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "INFO"), "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")

	rootCmd.AddCommand(newAddCmd(), newListCmd(), newRmCmd(), newUpdateCmd(), newCheckCmd(), newServerCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// We don't log an error here because the logger isn't set up yet.
		// It will just fall back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}

func loadService() (*state.Service, error) {
	switch ruleProvider {
	case "dir":
		return state.FromPath(storagePath)
	case "mariadb":
		if rulesDB == "" {
			return nil, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		return state.FromDSN(rulesDB)
	default:
		return nil, fmt.Errorf("unknown rule provider %q", ruleProvider)
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add RULE",
		Short: "Add rule to the security group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			idx, err := svc.CreateRule(nsg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), idx)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [TAGS]",
		Short: "List rules of the security group, optionally narrowed by a tag expression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			filter := tags.New()
			if len(args) > 0 {
				filter = tags.FromQuery(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.ListRules(nsg, filter))
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm REFTYPE REF",
		Short: "Delete rules by index, tag expression or all at once",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := state.ParseRef(args[0], argAt(args, 1))
			if err != nil {
				return err
			}
			svc, err := loadService()
			if err != nil {
				return err
			}
			return svc.DeleteRule(nsg, ref)
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update REFTYPE REF RULE",
		Short: "Replace the addressed rules with a new one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := state.ParseRef(args[0], args[1])
			if err != nil {
				return err
			}
			svc, err := loadService()
			if err != nil {
				return err
			}
			return svc.UpdateRule(nsg, ref, args[2])
		},
	}
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check IP URI",
		Short: "Resolve a visitor and print the reaction of the security group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := net.ParseIP(args[0])
			if ip == nil || ip.To4() == nil {
				return fmt.Errorf("invalid IPv4 address %q", args[0])
			}
			svc, err := loadService()
			if err != nil {
				return err
			}
			resolver, err := geo.Open(maxmindPath)
			if err != nil {
				return err
			}
			defer resolver.Close()
			visit, err := resolver.Visit(ip.To4(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.React(nsg, visit))
			return nil
		},
	}
	cmd.Flags().StringVar(&maxmindPath, "maxmind", envOr("TRAEFIK_GUARD_MAXMIND_PATH", "./"), "Path to the directory holding GeoLite2-City.mmdb")
	return cmd
}

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the forward-auth HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				slog.Error("Failed to load security groups", "error", err)
				return err
			}

			var resolver httpapi.Resolver
			if mm, err := geo.Open(maxmindPath); err != nil {
				slog.Warn("MaxMind database unavailable, every visitor passes", "path", maxmindPath, "error", err)
			} else {
				defer mm.Close()
				resolver = mm
			}

			e := httpapi.New(svc, resolver, httpapi.Options{IPSource: ipSource})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- e.Start(listenAddr)
			}()
			slog.Info("Listening", "addr", listenAddr)

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := e.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", envOr("LISTEN", "0.0.0.0:8000"), "Listening address of the HTTP server")
	cmd.Flags().StringVar(&maxmindPath, "maxmind", envOr("TRAEFIK_GUARD_MAXMIND_PATH", "./"), "Path to the directory holding GeoLite2-City.mmdb")
	cmd.Flags().StringVar(&ipSource, "ip-source", envOr("TRAEFIK_GUARD_IP_SOURCE", "connect-info"), "Where the client address is read from")
	return cmd
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
