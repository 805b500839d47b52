package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/stake-plus/govproposals/src/actions"
	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/config"
	"github.com/stake-plus/govproposals/src/data"
	"github.com/stake-plus/govproposals/src/discord"
	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/events"
	"github.com/stake-plus/govproposals/src/executor"
	"github.com/stake-plus/govproposals/src/metrics"
	"github.com/stake-plus/govproposals/src/proposals"
	"github.com/stake-plus/govproposals/src/webserver"
)

func main() {
	root := &cobra.Command{
		Use:           "proposal-bot",
		Short:         "Chat bot for submitting and voting on proposals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand(), slashCommandsCommand())

	if err := root.Execute(); err != nil {
		log.Printf("proposal-bot: %v", err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the optional HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := open(cfg)
			if err != nil {
				return err
			}
			defer data.Close(db)
			log.Printf("migrate: schema is up to date")
			return nil
		},
	}
}

func slashCommandsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slash-commands",
		Short: "Manage registered Discord slash commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "remove",
		Short: "Delete every registered slash command for the configured guild",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := loadRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer data.Close(db)

			session, err := discordgo.New("Bot " + cfg.Token)
			if err != nil {
				return fmt.Errorf("discord: session: %w", err)
			}
			me, err := session.User("@me")
			if err != nil {
				return fmt.Errorf("discord: resolve application: %w", err)
			}
			removed, err := discord.DeleteSlashCommands(session, me.ID, cfg.GuildID)
			if err != nil {
				return err
			}
			log.Printf("slash-commands: removed %d command(s)", removed)
			return nil
		},
	})
	return cmd
}

// open connects and migrates every table the service owns.
func open(cfg config.Base) (*gorm.DB, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	db, err := data.Connect(cfg.DSN(), cfg.Pool())
	if err != nil {
		return nil, err
	}
	if err := data.Migrate(db, &proposals.Proposal{}); err != nil {
		data.Close(db)
		return nil, fmt.Errorf("data: migrate: %w", err)
	}
	return db, nil
}

// loadRuntime resolves the full configuration, settings table included.
func loadRuntime(ctx context.Context) (config.Base, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Base{}, nil, err
	}
	db, err := open(cfg)
	if err != nil {
		return config.Base{}, nil, err
	}
	if err := data.LoadSettings(ctx, db); err != nil {
		log.Printf("config: settings unavailable, using environment only: %v", err)
	}
	cfg.ApplySettings()
	if err := cfg.Validate(); err != nil {
		data.Close(db)
		return config.Base{}, nil, err
	}
	return cfg, db, nil
}

func serve(ctx context.Context) error {
	cfg, db, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer data.Close(db)

	store := proposals.NewStore(db, proposals.WithTimeout(cfg.StoreTimeout))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	checks := []webserver.Check{{Name: "database", Probe: store.Ping}}

	var publisher events.Publisher = events.Nop{}
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		redisPub := events.NewRedisPublisher(rdb)
		publisher = redisPub
		checks = append(checks, webserver.Check{Name: "redis", Probe: redisPub.Ping})
		log.Printf("events: publishing to stream %s", events.Stream)
	}

	exec := executor.New(store,
		executor.WithPublisher(publisher),
		executor.WithMetrics(m),
		executor.WithPrefix(cfg.CommandPrefix),
	)
	dispatcher := dispatch.New(commands.NewParser(cfg.CommandPrefix), exec, dispatch.Options{
		MaxConcurrent: cfg.DispatchMaxConcurrent,
		Metrics:       m,
	})

	manager, err := actions.StartAll(ctx, cfg, actions.Deps{
		Dispatcher: dispatcher,
		Reader:     store,
		Gatherer:   reg,
		Checks:     checks,
	})
	if err != nil {
		return fmt.Errorf("actions start: %w", err)
	}
	log.Printf("proposal-bot: running modules [%s] with prefix %q", strings.Join(manager.Names(), ", "), cfg.CommandPrefix)

	<-ctx.Done()
	log.Printf("proposal-bot: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	manager.Stop(shutdownCtx)
	return nil
}
