// Package state holds the in-memory authenticated identity and fans out
// changes to observers.
//
// Subscribe registers a synchronous callback that replays the latest value
// immediately and then sees every subsequent Set, in order, with no drops.
// Watch adapts the same stream to a channel for select-based consumers,
// trading the no-drop guarantee for non-blocking emission.
package state
