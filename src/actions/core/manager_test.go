package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingModule struct {
	name     string
	startErr error
	log      *[]string
}

func (r *recordingModule) Name() string { return r.name }

func (r *recordingModule) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recordingModule) Stop(context.Context) {
	*r.log = append(*r.log, "stop "+r.name)
}

func TestManagerOrder(t *testing.T) {
	var events []string
	a := &recordingModule{name: "dispatch", log: &events}
	b := &recordingModule{name: "discord", log: &events}

	m := NewManager(a, nil)
	require.NoError(t, m.Add(b))
	require.NoError(t, m.Add(nil))
	assert.Equal(t, []string{"dispatch", "discord"}, m.Names())

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx))
	assert.Error(t, m.Add(&recordingModule{name: "late", log: &events}))

	m.Stop(ctx)
	assert.Equal(t, []string{"start dispatch", "start discord", "stop discord", "stop dispatch"}, events)

	m.Stop(ctx)
	assert.Len(t, events, 4, "second stop is a no-op")
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	var events []string
	boom := errors.New("listen: address in use")
	m := NewManager(
		&recordingModule{name: "dispatch", log: &events},
		&recordingModule{name: "discord", log: &events},
		&recordingModule{name: "webserver", log: &events, startErr: boom},
	)

	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "webserver")
	assert.Equal(t, []string{"start dispatch", "start discord", "stop discord", "stop dispatch"}, events)
}
