package registry

import (
	"math/big"

	"github.com/cmwaters/groupsync/pkg/group"
)

// position orders events on chain.
type position struct {
	block    uint64
	logIndex uint
}

func (p position) before(o position) bool {
	if p.block != o.block {
		return p.block < o.block
	}
	return p.logIndex < o.logIndex
}

// memberEvent is the part of a MemberAdded, MemberUpdated or MemberRemoved
// log needed to rebuild the member list. For updates, commitment is the
// new commitment.
type memberEvent struct {
	at         position
	index      uint64
	commitment *big.Int
}

// replayMembers rebuilds the member list of a group from its event history.
// Members are listed in the order they were added. An index that was later
// updated carries its newest commitment; an index whose most recent change
// is a removal carries the group's zero value.
func replayMembers(groupID string, zero *big.Int, added, updated, removed []memberEvent) []group.Member {
	type change struct {
		at         position
		commitment *big.Int
	}
	changes := make(map[uint64]change, len(updated)+len(removed))
	for _, ev := range updated {
		if c, ok := changes[ev.index]; ok && ev.at.before(c.at) {
			continue
		}
		changes[ev.index] = change{at: ev.at, commitment: ev.commitment}
	}
	for _, ev := range removed {
		if c, ok := changes[ev.index]; ok && !c.at.before(ev.at) {
			continue
		}
		changes[ev.index] = change{at: ev.at, commitment: zero}
	}

	members := make([]group.Member, 0, len(added))
	for _, ev := range added {
		commitment := ev.commitment
		if c, ok := changes[ev.index]; ok {
			commitment = c.commitment
		}
		members = append(members, group.NewMember(groupID, ev.index, commitment))
	}
	return members
}
