package groupsync_test

import (
	"context"
	"testing"
	"time"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cmwaters/groupsync"
	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
	"github.com/cmwaters/groupsync/registry"
	"github.com/cmwaters/groupsync/syncstate"
)

func TestConnectSharesAppends(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	mn, err := mocknet.FullMeshLinked(2)
	require.NoError(t, err)

	reg := registry.NewLocal()
	cfg := config.Config{GroupID: 42}
	states := make([]*syncstate.State, 2)
	for i, h := range mn.Hosts() {
		state, r, err := groupsync.Connect(ctx, h, cfg, reg, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, r.Close()) })
		states[i] = state
	}
	require.NoError(t, mn.ConnectAllButSelf())

	states[0].AddFeedback("Hello")
	states[1].AddMember(group.Member{ID: "7"})
	states[0].Flush()
	states[1].Flush()

	require.Eventually(t, func() bool {
		return len(states[1].Feedback()) == 1 && len(states[0].Members()) == 1
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, []string{"Hello"}, states[1].Feedback())
	require.Equal(t, []string{"7"}, group.IDs(states[0].Members()))

	// each peer applied its own append exactly once
	require.Equal(t, []string{"Hello"}, states[0].Feedback())
	require.Equal(t, []string{"7"}, group.IDs(states[1].Members()))

	// the registry remains the authority
	reg.AddMember("42", "8")
	require.NoError(t, states[0].RefreshMembers(ctx).Err())
	require.Equal(t, []string{"8"}, group.IDs(states[0].Members()))
}

func TestConnectRequiresGroup(t *testing.T) {
	mn, err := mocknet.FullMeshLinked(1)
	require.NoError(t, err)

	_, _, err = groupsync.Connect(context.Background(), mn.Hosts()[0], config.Config{}, registry.NewLocal(), zerolog.Nop())
	require.ErrorIs(t, err, syncstate.ErrMissingGroupID)
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv(config.EnvNetwork, "scroll-sepolia")
	t.Setenv(config.EnvGroupID, "42")

	state, err := groupsync.FromEnv(syncstate.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Empty(t, state.Members())
	require.Empty(t, state.Feedback())
}
