package registry

import (
	"context"
	"sync"

	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
)

var _ Client = (*Local)(nil)

// Local is an in-memory registry. It is safe for concurrent use and is
// useful for tests and for applications that keep the registry in process.
type Local struct {
	mtx     sync.Mutex
	members map[string][]group.Member
	signals map[string][]VerifiedSignal
	failure error
	calls   int
}

func NewLocal() *Local {
	return &Local{
		members: make(map[string][]group.Member),
		signals: make(map[string][]VerifiedSignal),
	}
}

// SetMembers replaces the member list of a group.
func (l *Local) SetMembers(groupID string, members ...group.Member) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.members[groupID] = group.Clone(members)
}

// AddMember appends a member to a group, assigning the next index.
func (l *Local) AddMember(groupID, id string) group.Member {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	m := group.Member{ID: id, Index: uint64(len(l.members[groupID])), GroupID: groupID}
	l.members[groupID] = append(l.members[groupID], m)
	return m
}

// AddSignal records verified signals for a group.
func (l *Local) AddSignal(groupID string, signals ...string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	for _, s := range signals {
		l.signals[groupID] = append(l.signals[groupID], VerifiedSignal{Signal: s})
	}
}

// Fail makes every subsequent call return err wrapped in ErrUnavailable.
// Passing nil restores normal operation.
func (l *Local) Fail(err error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.failure = err
}

// Calls returns the number of requests served or failed so far.
func (l *Local) Calls() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.calls
}

func (l *Local) Members(ctx context.Context, target config.Target) ([]group.Member, error) {
	if err := l.begin(ctx, target); err != nil {
		return nil, err
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return group.Clone(l.members[target.GroupID]), nil
}

func (l *Local) VerifiedSignals(ctx context.Context, target config.Target) ([]VerifiedSignal, error) {
	if err := l.begin(ctx, target); err != nil {
		return nil, err
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	signals := l.signals[target.GroupID]
	out := make([]VerifiedSignal, len(signals))
	copy(out, signals)
	return out, nil
}

func (l *Local) begin(ctx context.Context, target config.Target) error {
	l.mtx.Lock()
	l.calls++
	failure := l.failure
	l.mtx.Unlock()

	if err := checkTarget(target); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrap(err, "request cancelled")
	}
	if failure != nil {
		return wrap(failure, "local registry")
	}
	return nil
}
