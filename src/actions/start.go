package actions

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stake-plus/govproposals/src/actions/core"
	"github.com/stake-plus/govproposals/src/config"
	"github.com/stake-plus/govproposals/src/discord"
	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/webserver"
)

// Deps are the shared components every transport module is built on.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Reader     webserver.Reader
	Gatherer   prometheus.Gatherer
	Checks     []webserver.Check
}

// Build wires the enabled modules without starting them. The dispatcher
// module comes first so it is stopped last, after every transport has
// stopped feeding it.
func Build(cfg config.Base, deps Deps) (*core.Manager, error) {
	mgr := core.NewManager(&dispatcherModule{d: deps.Dispatcher})

	if cfg.Token != "" {
		mod, err := discord.NewModule(discord.Config{
			Token:         cfg.Token,
			GuildID:       cfg.GuildID,
			SlashCommands: cfg.SlashCommandsEnabled(),
		}, deps.Dispatcher)
		if err != nil {
			return nil, fmt.Errorf("actions: init discord module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add discord module: %w", err)
		}
	} else {
		log.Printf("actions: discord module disabled, no token")
	}

	if cfg.HTTPAddr != "" {
		srv := webserver.NewServer(webserver.Config{
			Addr:         cfg.HTTPAddr,
			AllowOrigins: cfg.HTTPAllowOrigins,
		}, webserver.Deps{
			Submitter: deps.Dispatcher,
			Reader:    deps.Reader,
			Gatherer:  deps.Gatherer,
			Checks:    deps.Checks,
		})
		if err := mgr.Add(srv); err != nil {
			return nil, fmt.Errorf("actions: add webserver module: %w", err)
		}
	} else {
		log.Printf("actions: webserver disabled, HTTP_ADDR not set")
	}

	return mgr, nil
}

// StartAll builds the modules and starts the manager.
func StartAll(ctx context.Context, cfg config.Base, deps Deps) (*core.Manager, error) {
	mgr, err := Build(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

// dispatcherModule drains queued commands on shutdown.
type dispatcherModule struct {
	d *dispatch.Dispatcher
}

func (m *dispatcherModule) Name() string { return "dispatch" }

func (m *dispatcherModule) Start(context.Context) error { return nil }

func (m *dispatcherModule) Stop(ctx context.Context) {
	if err := m.d.Stop(ctx); err != nil {
		log.Printf("dispatch: stop: %v", err)
	}
}
