package group

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidMember is returned when a member record fails validation at the
// registry boundary.
var ErrInvalidMember = errors.New("invalid member")

// Member is an identity belonging to a group. The registry is the authority
// on membership; a Member held locally is either a copy of what the registry
// returned or an optimistic local addition.
type Member struct {
	// ID is the identity commitment in its decimal form.
	ID string `json:"id"`

	// Index is the position of the member's leaf in the group tree.
	Index uint64 `json:"index"`

	// GroupID is the group the member was fetched for. Empty for members
	// added locally without one.
	GroupID string `json:"group_id,omitempty"`
}

// NewMember creates a member from an identity commitment.
func NewMember(groupID string, index uint64, commitment *big.Int) Member {
	return Member{
		ID:      commitment.String(),
		Index:   index,
		GroupID: groupID,
	}
}

// Validate checks that the member carries an identity.
func (m Member) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: empty id at index %d", ErrInvalidMember, m.Index)
	}
	return nil
}

// Commitment returns the identity commitment as an integer, if the ID is a
// decimal number.
func (m Member) Commitment() (*big.Int, bool) {
	return new(big.Int).SetString(m.ID, 10)
}

func (m Member) String() string {
	return fmt.Sprintf("Member{%s #%d}", m.ID, m.Index)
}
