package actions

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/config"
	"github.com/stake-plus/govproposals/src/data"
	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/executor"
	"github.com/stake-plus/govproposals/src/proposals"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	db, err := data.Connect("sqlite::memory:", data.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, proposals.Migrate(db))
	t.Cleanup(func() { _ = data.Close(db) })

	store := proposals.NewStore(db)
	return Deps{
		Dispatcher: dispatch.New(commands.NewParser("!"), executor.New(store), dispatch.Options{}),
		Reader:     store,
		Gatherer:   prometheus.NewRegistry(),
	}
}

func TestBuildSelectsModules(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Base
		want []string
	}{
		{"dispatcher only", config.Base{}, []string{"dispatch"}},
		{"discord", config.Base{Token: "abc"}, []string{"dispatch", "discord"}},
		{"http", config.Base{HTTPAddr: "127.0.0.1:0"}, []string{"dispatch", "webserver"}},
		{"both", config.Base{Token: "abc", HTTPAddr: "127.0.0.1:0"}, []string{"dispatch", "discord", "webserver"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, err := Build(tt.cfg, newDeps(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, mgr.Names())
		})
	}
}

func TestStartAllStopsDispatcher(t *testing.T) {
	deps := newDeps(t)
	mgr, err := StartAll(context.Background(), config.Base{HTTPAddr: "127.0.0.1:0"}, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mgr.Stop(ctx)

	err = deps.Dispatcher.Submit(dispatch.Inbound{Text: "!help", Respond: func(context.Context, string) error { return nil }})
	assert.ErrorIs(t, err, dispatch.ErrStopped)
}

func TestStartAllFailsOnBadAddress(t *testing.T) {
	deps := newDeps(t)
	_, err := StartAll(context.Background(), config.Base{HTTPAddr: "127.0.0.1:-1"}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webserver")

	// the rollback stopped the dispatcher
	err = deps.Dispatcher.Submit(dispatch.Inbound{Text: "!help", Respond: func(context.Context, string) error { return nil }})
	assert.ErrorIs(t, err, dispatch.ErrStopped)
}
