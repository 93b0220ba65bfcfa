package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/audit"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/denylist"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/display"
	blackicemcp "github.com/thearpankumar/Project-BlackIceOS-sub002/internal/mcp"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/reload"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/template"
)

var (
	serveHeadless bool
	serveWidth    int
	serveHeight   int
	serveStartURL string
	serveAuditLog string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", true, "Run the AI browser surface headless")
	serveCmd.Flags().IntVar(&serveWidth, "width", 1920, "AI surface width in pixels")
	serveCmd.Flags().IntVar(&serveHeight, "height", 1080, "AI surface height in pixels")
	serveCmd.Flags().StringVar(&serveStartURL, "start-url", "about:blank", "Initial page for the AI surface")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Session log path (overrides config audit_log)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP automation server for agent integration",
	Long: "Runs blackice as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes safety-gated tools: click, type, screenshot, find_element,\n" +
		"emergency_stop, status.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down blackice...")
		cancel()
	}()

	monitor := activity.New(activity.NewProcProber(), cfg.Activity, log)
	monitor.Sample()
	go func() {
		if err := monitor.Run(ctx); err != nil {
			log.WithError(err).Error("activity monitor stopped")
		}
	}()

	gate := permission.NewGate(cfg.Permissions, nil, log)

	dl := denylist.NewDefault()
	if len(cfg.Denylist.Substrings) > 0 || len(cfg.Denylist.Regex) > 0 {
		dl = denylist.New(cfg.Denylist)
	}

	surface, err := display.NewBrowserDisplay(display.BrowserOptions{
		Headless: serveHeadless,
		Width:    serveWidth,
		Height:   serveHeight,
		StartURL: serveStartURL,
	})
	if err != nil {
		return fmt.Errorf("failed to start AI display surface: %w", err)
	}
	defer surface.Close()

	auditPath := serveAuditLog
	if auditPath == "" {
		auditPath = cfg.AuditLog
	}
	var auditLog *audit.Log
	if auditPath != "" {
		auditLog, err = audit.Open(auditPath)
		if err != nil {
			return fmt.Errorf("failed to open session log: %w", err)
		}
	}

	dispatcher, err := dispatch.New(dispatch.Deps{
		Gate:      gate,
		Monitor:   monitor,
		Display:   surface,
		Injector:  surface,
		Templates: template.NewCache(cfg.Templates.Root, cfg.Templates.Categories),
		Denylist:  dl,
		Audit:     auditLog,
		Timeouts:  cfg.Timeouts,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer func() {
		if err := dispatcher.Shutdown(); err != nil {
			log.WithError(err).Warn("dispatcher shutdown failed")
		}
	}()

	if configPath != "" {
		reloader, err := reload.NewReloader(configPath, reload.ApplyTo(monitor, dispatcher), log)
		if err != nil {
			log.WithError(err).Warn("config hot-reload disabled")
		} else {
			go func() {
				if err := reloader.Run(ctx); err != nil {
					log.WithError(err).Warn("config watcher stopped")
				}
			}()
		}
	}

	srv, err := blackicemcp.New(dispatcher, monitor, gate, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "blackice MCP server running on stdio (session %s)\n", dispatcher.SessionID())
	return srv.Run(ctx)
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("BLACKICE_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
