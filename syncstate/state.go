package syncstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
	"github.com/cmwaters/groupsync/pkg/signal"
	"github.com/cmwaters/groupsync/registry"
)

type (
	// Resolver supplies the registry target for each operation. A
	// config.Config satisfies it.
	Resolver interface {
		Resolve() config.Target
	}

	// ResolverFunc adapts a function to a Resolver.
	ResolverFunc func() config.Target

	// Broadcaster shares optimistic appends with peers. It never writes to
	// the registry.
	Broadcaster interface {
		PublishMember(context.Context, group.Member) error
		PublishFeedback(context.Context, string) error
	}
)

func (f ResolverFunc) Resolve() config.Target {
	return f()
}

// State is the local view of a group: its members and the feedback decoded
// from its verified signals. Both collections start empty, are replaced
// whole by a successful refresh and can be appended to locally. Nothing a
// refresh encounters is raised to the caller: failures are logged, counted
// and returned as data, and the collection keeps its previous contents.
//
// Concurrent refreshes of the same collection are coalesced: a caller that
// arrives while one is in flight waits for it and receives its result. The
// shared refresh does not inherit any caller's cancellation. An append made
// while a refresh is in flight is overwritten when the refresh completes.
//
// State is safe for concurrent use.
type State struct {
	resolver Resolver
	client   registry.Client

	members  *collection[group.Member]
	feedback *collection[string]

	// flight coalesces in-flight refreshes per collection
	flight         singleflight.Group
	refreshTimeout time.Duration

	broadcaster      Broadcaster
	broadcastTimeout time.Duration
	broadcasts       sync.WaitGroup

	logger  zerolog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New creates a State with empty collections.
func New(resolver Resolver, client registry.Client, opts ...Option) *State {
	s := &State{
		resolver:         resolver,
		client:           client,
		members:          newCollection[group.Member](),
		feedback:         newCollection[string](),
		broadcastTimeout: DefaultBroadcastTimeout,
		refreshTimeout:   DefaultRefreshTimeout,
		logger:           zerolog.New(os.Stdout),
		metrics:          NopMetrics(),
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Members returns a copy of the member collection.
func (s *State) Members() []group.Member {
	return s.members.snapshot()
}

// Feedback returns a copy of the feedback collection.
func (s *State) Feedback() []string {
	return s.feedback.snapshot()
}

func (s *State) MembersStatus() Status {
	return s.members.getStatus()
}

func (s *State) FeedbackStatus() Status {
	return s.feedback.getStatus()
}

// RefreshMembers replaces the member collection with the registry's current
// member list.
func (s *State) RefreshMembers(ctx context.Context) Result[group.Member] {
	return join(ctx, s, s.members, collectionMembers, s.refreshMembers)
}

func (s *State) refreshMembers(ctx context.Context) Result[group.Member] {
	s.metrics.Refreshes.WithLabelValues(collectionMembers).Inc()

	target := s.resolver.Resolve()
	if !target.HasGroup() {
		return failed(s, s.members, collectionMembers, &Failure{Reason: MissingGroupID, Err: ErrMissingGroupID})
	}

	members, err := s.client.Members(ctx, target)
	if err == nil {
		err = group.ValidateAll(members)
	}
	if err != nil {
		return failed(s, s.members, collectionMembers, &Failure{Reason: RegistryUnavailable, Err: err})
	}

	items := s.members.replace(members, s.now(), nil)
	s.metrics.Size.WithLabelValues(collectionMembers).Set(float64(len(items)))
	s.logger.Debug().Str("group", target.GroupID).Int("members", len(items)).Msg("refreshed members")
	return Result[group.Member]{Items: items, Updated: true}
}

// RefreshFeedback replaces the feedback collection with the decoded
// verified signals of the group, in registry order. A signal that cannot be
// decoded becomes signal.Invalid at its position without affecting the rest.
func (s *State) RefreshFeedback(ctx context.Context) Result[string] {
	return join(ctx, s, s.feedback, collectionFeedback, s.refreshFeedback)
}

func (s *State) refreshFeedback(ctx context.Context) Result[string] {
	s.metrics.Refreshes.WithLabelValues(collectionFeedback).Inc()

	target := s.resolver.Resolve()
	if !target.HasGroup() {
		return failed(s, s.feedback, collectionFeedback, &Failure{Reason: MissingGroupID, Err: ErrMissingGroupID})
	}

	signals, err := s.client.VerifiedSignals(ctx, target)
	if err == nil {
		err = validateSignals(signals)
	}
	if err != nil {
		return failed(s, s.feedback, collectionFeedback, &Failure{Reason: RegistryUnavailable, Err: err})
	}

	var (
		feedback   = make([]string, len(signals))
		decodeErrs error
		invalid    int
	)
	for i, sig := range signals {
		text, err := signal.Parse(sig.Signal)
		if err != nil {
			s.logger.Warn().Err(err).Int("index", i).Str("group", target.GroupID).Msg("failed to decode signal")
			decodeErrs = errors.Join(decodeErrs, err)
			invalid++
			text = signal.Invalid
		}
		feedback[i] = text
	}

	var failure *Failure
	if invalid > 0 {
		failure = &Failure{Reason: SignalDecodeFailure, Err: decodeErrs}
		s.metrics.DecodeFailures.Add(float64(invalid))
		s.metrics.Failures.WithLabelValues(collectionFeedback, failure.Reason.String()).Inc()
	}

	items := s.feedback.replace(feedback, s.now(), failure)
	s.metrics.Size.WithLabelValues(collectionFeedback).Set(float64(len(items)))
	s.logger.Debug().Str("group", target.GroupID).Int("feedback", len(items)).Int("invalid", invalid).Msg("refreshed feedback")
	return Result[string]{Items: items, Updated: true, Failure: failure, DecodeFailures: invalid}
}

// Refresh refreshes both collections concurrently and returns their
// failures joined, or nil.
func (s *State) Refresh(ctx context.Context) error {
	var (
		g        errgroup.Group
		members  Result[group.Member]
		feedback Result[string]
	)
	g.Go(func() error {
		members = s.RefreshMembers(ctx)
		return members.Err()
	})
	g.Go(func() error {
		feedback = s.RefreshFeedback(ctx)
		return feedback.Err()
	})
	if err := g.Wait(); err == nil {
		return nil
	}
	// Wait keeps only the first failure
	return errors.Join(members.Err(), feedback.Err())
}

// AddMember appends a member locally. The registry is not written to; the
// member disappears on the next refresh unless the registry has it too.
func (s *State) AddMember(m group.Member) {
	n := s.members.append(m)
	s.metrics.Appends.WithLabelValues(collectionMembers, "local").Inc()
	s.metrics.Size.WithLabelValues(collectionMembers).Set(float64(n))

	if s.broadcaster != nil {
		s.relay(collectionMembers, func(ctx context.Context) error {
			return s.broadcaster.PublishMember(ctx, m)
		})
	}
}

// AddFeedback appends feedback locally, with the same caveats as AddMember.
func (s *State) AddFeedback(text string) {
	n := s.feedback.append(text)
	s.metrics.Appends.WithLabelValues(collectionFeedback, "local").Inc()
	s.metrics.Size.WithLabelValues(collectionFeedback).Set(float64(n))

	if s.broadcaster != nil {
		s.relay(collectionFeedback, func(ctx context.Context) error {
			return s.broadcaster.PublishFeedback(ctx, text)
		})
	}
}

// ReceiveMember applies a member appended by a peer. It is not relayed
// again. Invalid members are rejected.
func (s *State) ReceiveMember(_ context.Context, m group.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	n := s.members.append(m)
	s.metrics.Appends.WithLabelValues(collectionMembers, "relay").Inc()
	s.metrics.Size.WithLabelValues(collectionMembers).Set(float64(n))
	return nil
}

// ReceiveFeedback applies feedback appended by a peer. It is not relayed
// again.
func (s *State) ReceiveFeedback(_ context.Context, text string) error {
	n := s.feedback.append(text)
	s.metrics.Appends.WithLabelValues(collectionFeedback, "relay").Inc()
	s.metrics.Size.WithLabelValues(collectionFeedback).Set(float64(n))
	return nil
}

// Flush waits for pending relays of local appends to finish.
func (s *State) Flush() {
	s.broadcasts.Wait()
}

func (s *State) relay(name string, publish func(context.Context) error) {
	s.broadcasts.Add(1)
	go func() {
		defer s.broadcasts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.broadcastTimeout)
		defer cancel()
		if err := publish(ctx); err != nil {
			s.logger.Error().Err(err).Str("collection", name).Msg("failed to relay local append")
		}
	}()
}

// join runs refresh for the named collection, or waits for the one already
// in flight. The refresh runs detached from ctx, bounded by the refresh
// timeout. A caller whose ctx ends first gets the current items and its
// context error.
func join[T any](ctx context.Context, s *State, c *collection[T], name string, refresh func(context.Context) Result[T]) Result[T] {
	ch := s.flight.DoChan(name, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return refresh(ctx), nil
	})
	select {
	case r := <-ch:
		res := r.Val.(Result[T])
		res.Items = cloneItems(res.Items)
		return res
	case <-ctx.Done():
		s.logger.Debug().Err(ctx.Err()).Str("collection", name).Msg("stopped waiting for refresh")
		return Result[T]{
			Items:   c.snapshot(),
			Failure: &Failure{Reason: RegistryUnavailable, Err: ctx.Err()},
		}
	}
}

func validateSignals(signals []registry.VerifiedSignal) error {
	var err error
	for i, sig := range signals {
		if vErr := sig.Validate(); vErr != nil {
			err = errors.Join(err, fmt.Errorf("signal %d: %w", i, vErr))
		}
	}
	return err
}

// failed reports a refresh that left the collection untouched.
func failed[T any](s *State, c *collection[T], name string, f *Failure) Result[T] {
	s.logger.Error().Err(f.Err).Str("collection", name).Str("reason", f.Reason.String()).Msg("refresh failed")
	s.metrics.Failures.WithLabelValues(name, f.Reason.String()).Inc()
	return Result[T]{Items: c.fail(f), Failure: f}
}
