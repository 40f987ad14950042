package group

import "errors"

// ValidateAll returns the joined validation errors of every member.
func ValidateAll(members []Member) error {
	var err error
	for _, m := range members {
		err = errors.Join(err, m.Validate())
	}
	return err
}

// Clone returns a copy of the member list. A nil list stays nil.
func Clone(members []Member) []Member {
	if members == nil {
		return nil
	}
	out := make([]Member, len(members))
	copy(out, members)
	return out
}

// IDs returns the identity commitments of the members in order.
func IDs(members []Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}
