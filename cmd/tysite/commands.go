package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/tysite/internal/config"
	"github.com/kalambet/tysite/internal/consent"
	"github.com/kalambet/tysite/internal/storage"
)

// --- consent ---

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Inspect or change stored visitor consent",
}

// withConsent opens the data store and the consent store for the --scope flag.
func withConsent(cmd *cobra.Command, fn func(s *consent.Store) error) error {
	scope, _ := cmd.Flags().GetString("scope")
	if scope == "" {
		return fmt.Errorf("--scope is required (see tysite consent scopes)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	opts := append(consentOptions(cfg, newLogger(cfg)), consent.WithScope(scope))
	return fn(consent.NewStore(store.KV(scope), opts...))
}

func writeConsent(w io.Writer, s *consent.Store) {
	d, ok := s.Details()
	if !ok {
		fmt.Fprintf(w, "%s: no consent recorded\n", s.Scope())
		return
	}
	fmt.Fprintf(w, "%s  version %s  recorded %s\n", colorize(colorCyan, s.Scope()), d.Version, d.FormattedDate)
	for _, c := range consent.AllCategories {
		mark := colorize(colorRed, "no")
		if d.Categories.Get(c) {
			mark = colorize(colorGreen, "yes")
		}
		fmt.Fprintf(w, "  %-12s %-12s %s\n", c.String(), c.Label(), mark)
	}
}

// parseCategoryArgs reads "category=bool" pairs.
func parseCategoryArgs(args []string) (map[consent.Category]bool, error) {
	out := make(map[consent.Category]bool, len(args))
	for _, arg := range args {
		name, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected category=true|false, got %q", arg)
		}
		c, err := consent.ParseCategory(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		out[c] = b
	}
	return out, nil
}

func saved(ok bool, s *consent.Store) error {
	if !ok {
		return fmt.Errorf("consent could not be saved for %s", s.Scope())
	}
	writeConsent(os.Stdout, s)
	return nil
}

var consentScopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List visitors with a stored consent record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			scopes, err := store.Scopes(consent.DefaultKey)
			if err != nil {
				return err
			}
			if len(scopes) == 0 {
				fmt.Println("No consent records found.")
				return nil
			}
			for _, sc := range scopes {
				fmt.Println(sc)
			}
			return nil
		})
	},
}

var consentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the consent record of a visitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsent(cmd, func(s *consent.Store) error {
			writeConsent(os.Stdout, s)
			return nil
		})
	},
}

var consentAcceptAllCmd = &cobra.Command{
	Use:   "accept-all",
	Short: "Grant every category",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsent(cmd, func(s *consent.Store) error {
			return saved(s.AcceptAll(), s)
		})
	},
}

var consentEssentialCmd = &cobra.Command{
	Use:   "essential-only",
	Short: "Grant essential cookies only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsent(cmd, func(s *consent.Store) error {
			return saved(s.AcceptEssentialOnly(), s)
		})
	},
}

var consentSetCmd = &cobra.Command{
	Use:   "set <category=bool>...",
	Short: "Update individual categories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partial, err := parseCategoryArgs(args)
		if err != nil {
			return err
		}
		return withConsent(cmd, func(s *consent.Store) error {
			return saved(s.Set(partial), s)
		})
	},
}

var consentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the consent record without notifying observers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsent(cmd, func(s *consent.Store) error {
			s.Clear()
			printSuccess("Consent cleared for %s", s.Scope())
			return nil
		})
	},
}

var consentResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the consent record so the banner is shown again",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsent(cmd, func(s *consent.Store) error {
			s.Reset()
			printSuccess("Consent reset for %s", s.Scope())
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{consentShowCmd, consentAcceptAllCmd, consentEssentialCmd, consentSetCmd, consentClearCmd, consentResetCmd} {
		c.Flags().String("scope", "", "visitor id (the ty_visitor cookie value)")
		consentCmd.AddCommand(c)
	}
	consentCmd.AddCommand(consentScopesCmd)
}

// --- inquiries ---

var inquiriesCmd = &cobra.Command{
	Use:   "inquiries",
	Short: "Browse contact form inquiries",
}

func writeInquiries(w io.Writer, list []storage.Inquiry) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No inquiries found.")
		return
	}
	for _, q := range list {
		msg := strings.Join(strings.Fields(q.Message), " ")
		if r := []rune(msg); len(r) > 60 {
			msg = string(r[:60]) + "..."
		}
		status := colorize(colorYellow, q.Status)
		if q.Status == "delivered" {
			status = colorize(colorGreen, q.Status)
		}
		id := q.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s  %s  %-9s  %s <%s>  %s\n",
			colorize(colorCyan, id),
			q.CreatedAt.Format("2006-01-02 15:04"),
			status,
			q.Name, q.Email,
			msg,
		)
	}
}

var inquiriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent inquiries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		list, err := client.listInquiries(context.Background(), limit, offset)
		if err != nil {
			return err
		}
		writeInquiries(os.Stdout, list)
		return nil
	},
}

var inquiriesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single inquiry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		q, err := client.getInquiry(context.Background(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	},
}

func init() {
	inquiriesListCmd.Flags().Int("limit", 20, "maximum number of inquiries")
	inquiriesListCmd.Flags().Int("offset", 0, "number of inquiries to skip")
	inquiriesCmd.AddCommand(inquiriesListCmd)
	inquiriesCmd.AddCommand(inquiriesShowCmd)
}

// --- queue ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and retry inquiry deliveries",
}

// withStore opens the local data store for the duration of fn.
func withStore(fn func(store *storage.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func writeQueueStats(w io.Writer, store *storage.Store) error {
	versions, err := store.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	counts, err := store.JobCounts()
	if err != nil {
		return fmt.Errorf("counting jobs: %w", err)
	}
	schema := 0
	if len(versions) > 0 {
		schema = versions[len(versions)-1]
	}
	fmt.Fprintf(w, "schema %d  pending %d  running %d  completed %d  failed %d\n",
		schema, counts["pending"], counts["running"], counts["completed"], counts["failed"])
	return nil
}

func writeJobs(w io.Writer, jobs []storage.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found.")
		return
	}
	for _, j := range jobs {
		status := j.Status
		switch j.Status {
		case "failed":
			status = colorize(colorRed, status)
		case "completed":
			status = colorize(colorGreen, status)
		}
		fmt.Fprintf(w, "%s  %-9s  %d/%d  %s  %s\n",
			colorize(colorCyan, j.ID), status, j.Attempts, j.MaxAttempts,
			j.UpdatedAt.Format("2006-01-02 15:04"), j.LastError)
	}
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			return writeQueueStats(os.Stdout, store)
		})
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivery jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(func(store *storage.Store) error {
			jobs, err := store.ListJobs(status, limit)
			if err != nil {
				return err
			}
			writeJobs(os.Stdout, jobs)
			return nil
		})
	},
}

var queueShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a single delivery job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			j, err := store.GetJob(args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(j)
		})
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Make a pending or failed job run again now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			if err := store.RetryJob(args[0]); err != nil {
				return fmt.Errorf("retrying job %s: %w", args[0], err)
			}
			printSuccess("Job %s queued for another attempt", args[0])
			return nil
		})
	},
}

func init() {
	queueListCmd.Flags().String("status", "", "only jobs with this status (pending, running, completed, failed)")
	queueListCmd.Flags().Int("limit", 20, "maximum number of jobs")
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueShowCmd)
	queueCmd.AddCommand(queueRetryCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			printWarning("valid keys: %s", strings.Join(config.ValidKeys(), ", "))
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
