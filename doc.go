// Package groupsync keeps a local view of a group registry: the group's
// members and the feedback carried by its verified signals.
//
// The view lives in a syncstate.State. Refreshes pull from a
// registry.Client and replace a collection whole; local appends are
// optimistic and are overwritten by the next refresh. Failures never escape
// a refresh: they are logged and returned as data while the collection
// keeps its previous contents.
package groupsync
