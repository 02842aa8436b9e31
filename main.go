package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Martian-dev/pst-migrate/internal/archive/exportdir"
	"github.com/Martian-dev/pst-migrate/internal/auth"
	"github.com/Martian-dev/pst-migrate/internal/config"
	"github.com/Martian-dev/pst-migrate/internal/eventstore/sqlite"
	natsjs "github.com/Martian-dev/pst-migrate/internal/nats"
	"github.com/Martian-dev/pst-migrate/internal/providers/outlook"
	"github.com/Martian-dev/pst-migrate/internal/server"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	configPath string
	jsonOutput bool
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "pst-migrate",
		Short: "Migrate a personal folder archive into a Microsoft 365 mailbox",
		Long: `pst-migrate recreates the folder hierarchy of an exported personal
archive in a remote mailbox and imports its messages, contacts and
appointments. Items already present in the mailbox are skipped, so a
pass can be repeated safely.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	flags.String("source", "", "exported archive directory (PST_FILE)")
	flags.String("mailbox", "", "target mailbox user id or principal name (TARGET_MAILBOX)")
	flags.String("journal", "", "sqlite run journal path, empty to disable")
	flags.String("nats-url", "", "publish progress events to this NATS server")
	flags.String("status-addr", "", "serve /healthz and /status on this address")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	for key, flag := range map[string]string{
		"source_path":    "source",
		"target_mailbox": "mailbox",
		"journal_path":   "journal",
		"nats_url":       "nats-url",
		"status_addr":    "status-addr",
		"log.level":      "log-level",
		"log.format":     "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			log.Fatalf("binding flag %s: %v", flag, err)
		}
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("pst-migrate %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Reconcile folders and import all items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runMigration(cmd.Context(), cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "folders",
		Short: "Print the destination mail folder tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if err := cfg.ValidateDestination(); err != nil {
				return err
			}
			dest, err := newDestination(cfg)
			if err != nil {
				return err
			}
			dir, err := sync.LoadDirectory(cmd.Context(), dest)
			if err != nil {
				return fmt.Errorf("load destination folders: %w", err)
			}
			if jsonOutput {
				printJSON(dir.MailFolders)
				return nil
			}
			fmt.Print(dir.FormatTree())
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "List source folders and whether they will be migrated",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.SourcePath == "" {
				return fmt.Errorf("missing required settings: source_path")
			}
			opts, err := cfg.SyncOptions()
			if err != nil {
				return err
			}
			src, err := exportdir.Open(cfg.SourcePath, opts.Location)
			if err != nil {
				return err
			}
			defer src.Close()

			folders, err := sync.Normalize(src.Root(), opts)
			if err != nil {
				return fmt.Errorf("read source folders: %w", err)
			}
			if jsonOutput {
				printJSON(folders)
				return nil
			}
			for _, f := range folders {
				line := fmt.Sprintf("%s%s [%s]", strings.Repeat("  ", f.Depth), f.Name, f.ContainerClass)
				if f.Skip {
					line += fmt.Sprintf(" (skipped: %s)", f.SkipReason)
				}
				fmt.Println(line)
			}
			return nil
		},
	})

	var runsLimit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return fmt.Errorf("journal is disabled")
			}
			journal, err := sqlite.Open(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.RecentRuns(cmd.Context(), runsLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(runs)
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  %-7s %-10s items %d/%d created, %d errored\n",
					r.StartedAt.Format(time.RFC3339), r.ID, r.Status, r.Phase,
					itemsCreated(r.Items), itemsTotal(r.Items), itemsErrored(r.Items))
				if r.LastError != "" {
					fmt.Printf("    error: %s\n", r.LastError)
				}
			}
			return nil
		},
	}
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	log.SetLevel(level)
	return nil
}

func newDestination(cfg *config.Config) (*outlook.Adapter, error) {
	cred := auth.NewClientCredentials(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, outlook.GraphScopes)
	return outlook.New(cred, outlook.Options{
		Mailbox:         cfg.TargetMailbox,
		MessageIDDomain: cfg.MessageIDDomain,
		PageSize:        cfg.PageSize,
		Retry:           cfg.Retry,
	})
}

func runMigration(ctx context.Context, cfg *config.Config) error {
	opts, err := cfg.SyncOptions()
	if err != nil {
		return err
	}

	src, err := exportdir.Open(cfg.SourcePath, opts.Location)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := newDestination(cfg)
	if err != nil {
		return err
	}

	progress := sync.NewProgress()
	observers := sync.Observers{progress}
	runner := &sync.Runner{Archive: src, Destination: dest, Options: opts}

	var journal *sqlite.Store
	if cfg.JournalPath != "" {
		journal, err = sqlite.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		observers = append(observers, journal)
	}

	var dispatcher *natsjs.Dispatcher
	dispatchDone := make(chan struct{})
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	switch {
	case cfg.NatsURL != "" && journal == nil:
		log.Warn("nats_url is set but the journal is disabled, progress events will not be published")
		close(dispatchDone)
	case cfg.NatsURL != "":
		publisher, err := natsjs.NewPublisher(cfg.NatsURL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.EnsureStream(ctx); err != nil {
			return err
		}
		journal.Outbox = natsjs.Address
		dispatcher = natsjs.NewDispatcher(journal, publisher)
		go func() {
			defer close(dispatchDone)
			dispatcher.Run(dispatchCtx)
		}()
	default:
		close(dispatchDone)
	}

	if cfg.StatusAddr != "" {
		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()

		var verifier server.CallerVerifier
		if cfg.StatusAuth.Enabled() {
			jwksURL := cfg.StatusAuth.JWKSURL
			if jwksURL == "" {
				jwksURL = auth.KeysURL(cfg.TenantID)
			}
			v, err := auth.NewVerifier(serveCtx, jwksURL, cfg.StatusAuth.Audience)
			if err != nil {
				return err
			}
			verifier = v
		}

		go func() {
			if err := server.Serve(serveCtx, cfg.StatusAddr, progress, verifier); err != nil {
				log.WithError(err).Error("status endpoint stopped")
			}
		}()
	}

	runner.Observer = observers
	runner.RunID = uuid.NewString()
	if journal != nil {
		if err := journal.BeginRun(ctx, runner.RunID, cfg.SourcePath, cfg.TargetMailbox); err != nil {
			return err
		}
	}

	report, runErr := runner.Run(ctx)

	if journal != nil {
		if err := journal.FinishRun(context.WithoutCancel(ctx), report, runErr); err != nil {
			log.WithError(err).Warn("failed to journal run result")
		}
	}

	stopDispatch()
	<-dispatchDone
	if dispatcher != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := dispatcher.Flush(flushCtx); err != nil {
			log.WithError(err).Warn("failed to flush progress events")
		}
		cancel()
	}

	if jsonOutput && report != nil {
		printJSON(report)
	}
	return runErr
}

func itemsTotal(s sync.Statistics) int {
	return s.Mail.Total + s.Contact.Total + s.Calendar.Total
}

func itemsCreated(s sync.Statistics) int {
	return s.Mail.Created + s.Contact.Created + s.Calendar.Created
}

func itemsErrored(s sync.Statistics) int {
	return s.Mail.ErroredOut + s.Contact.ErroredOut + s.Calendar.ErroredOut
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
