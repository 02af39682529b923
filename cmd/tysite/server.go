package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/tysite/internal/analytics"
	"github.com/kalambet/tysite/internal/config"
	"github.com/kalambet/tysite/internal/consent"
	"github.com/kalambet/tysite/internal/contact"
	"github.com/kalambet/tysite/internal/delivery"
	"github.com/kalambet/tysite/internal/site"
	"github.com/kalambet/tysite/internal/storage"
	"github.com/kalambet/tysite/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the website server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

// consentTimeZone is where consent dates are displayed.
const consentTimeZone = "Europe/Berlin"

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tysite.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func localURL(cfg config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
}

func consentOptions(cfg config.Config, logger *slog.Logger) []consent.Option {
	opts := []consent.Option{
		consent.WithVersion(cfg.Consent.Version),
		consent.WithExpiryMonths(cfg.Consent.ExpiryMonths),
		consent.WithLogger(logger),
	}
	if loc, err := time.LoadLocation(consentTimeZone); err == nil {
		opts = append(opts, consent.WithLocation(loc))
	}
	return opts
}

func newSender(cfg config.Config, store *storage.Store) contact.Sender {
	if cfg.Contact.Mode == config.ContactModeSimulate {
		return contact.SimulatedSender{Delay: cfg.Contact.SubmitDelay}
	}
	return contact.QueueSender{Store: store}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tysite version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Refuse to start twice. The health endpoint is the source of truth; the
	// PID file only names the process.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(localURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tysite is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tysite is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	content, err := site.Load(cfg.Site.ContentFile)
	if err != nil {
		return err
	}
	if cfg.Site.URL != "" {
		content.SEO.SiteURL = cfg.Site.URL
	}

	bus := &consent.Bus{}
	opener := web.ConsentOpener(store, bus, consentOptions(cfg, logger)...)
	gate := analytics.NewGate(bus, opener, logger)
	defer gate.Close()

	if cfg.Admin.Token == "" {
		logger.Warn("admin token not set, admin endpoints disabled")
	}

	handler, err := web.NewHandler(web.Deps{
		Store:         store,
		Content:       content,
		Consent:       opener,
		Gate:          gate,
		Sender:        newSender(cfg, store),
		SubmitTimeout: cfg.Contact.SubmitTimeout,
		AdminToken:    cfg.Admin.Token,
		SecureCookies: cfg.Server.SecureCookies,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("building handler: %w", err)
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", addr, "contact_mode", cfg.Contact.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.Contact.Mode == config.ContactModeQueue {
		worker := delivery.NewWorker(store, nil, cfg.Contact.WebhookURL, 0)
		worker.SetLogger(logger)
		if cfg.Contact.WebhookURL == "" {
			logger.Warn("no webhook configured, inquiries are only logged")
		}
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("tysite is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tysite (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tysite (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	running := false
	resp, err := client.Get(localURL(cfg) + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on %s", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Contact mode", "%s", cfg.Contact.Mode)
	printStatus("Consent version", "%s (valid %d months)", cfg.Consent.Version, cfg.Consent.ExpiryMonths)

	if running && cfg.Admin.Token != "" {
		api := &apiClient{baseURL: localURL(cfg), token: cfg.Admin.Token, httpClient: client}
		if list, err := api.listInquiries(context.Background(), statusSampleSize, 0); err == nil {
			queued := 0
			for _, q := range list {
				if q.Status == "queued" {
					queued++
				}
			}
			printStatus("Inquiries", "%s (%d queued)", countLabel(len(list), statusSampleSize), queued)
		}
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		var buf strings.Builder
		if err := writeQueueStats(&buf, store); err == nil {
			printStatus("Database", "%s", strings.TrimSpace(buf.String()))
		}
		store.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

const statusSampleSize = 100

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
