package groupsync

import (
	"context"
	"errors"
	"sync/atomic"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
	"github.com/cmwaters/groupsync/registry"
	"github.com/cmwaters/groupsync/relay"
	"github.com/cmwaters/groupsync/syncstate"
)

// New creates a State that reads the group described by cfg from its
// registry contract.
func New(cfg config.Config, opts ...syncstate.Option) *syncstate.State {
	return syncstate.New(cfg, registry.NewEthereum(), opts...)
}

// FromEnv is New with the configuration read from the process environment.
func FromEnv(opts ...syncstate.Option) (*syncstate.State, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...), nil
}

// Connect creates a State whose local appends are shared with every peer of
// host that follows the same group. Close the returned relay to leave.
func Connect(
	ctx context.Context,
	h host.Host,
	cfg config.Config,
	client registry.Client,
	logger zerolog.Logger,
	opts ...syncstate.Option,
) (*syncstate.State, *relay.Relay, error) {
	target := cfg.Resolve()
	if !target.HasGroup() {
		return nil, nil, syncstate.ErrMissingGroupID
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, nil, err
	}

	n := &notifiee{}
	r, err := relay.Join(ps, h.ID(), target.GroupID, n, logger)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]syncstate.Option{syncstate.WithLogger(logger)}, opts...)
	opts = append(opts, syncstate.WithBroadcaster(r))
	state := syncstate.New(cfg, client, opts...)
	n.state.Store(state)
	return state, r, nil
}

var errNotReady = errors.New("state not ready")

// notifiee forwards relayed appends to a State created after the relay.
type notifiee struct {
	state atomic.Pointer[syncstate.State]
}

func (n *notifiee) OnMember(ctx context.Context, m group.Member) error {
	s := n.state.Load()
	if s == nil {
		return errNotReady
	}
	return s.ReceiveMember(ctx, m)
}

func (n *notifiee) OnFeedback(ctx context.Context, text string) error {
	s := n.state.Load()
	if s == nil {
		return errNotReady
	}
	return s.ReceiveFeedback(ctx, text)
}
