package testutils

import (
	"time"

	. "github.com/onsi/gomega"
)

// TryEvent attempts to receive an event from a recorder within the specified timeout. Returns
// the event and true if successful, or an empty event and false if timeout occurs.
func TryEvent[T any](r *Recorder[T], timeout time.Duration) (Event[T], bool) {
	select {
	case e := <-r.ch:
		return e, true
	case <-time.After(timeout):
		return Event[T]{}, false
	}
}

// MatchEvent validates that an event matches the expected kind, item and version.
func MatchEvent[T any](e Event[T], kind EventKind, item T, version int64) {
	Expect(e.Kind).To(Equal(kind))
	Expect(e.Item).To(Equal(item))
	Expect(e.Version).To(Equal(version))
}

// AddedEvent and friends build expected events for comparing whole event lists.

func AddedEvent[T any](item T, version int64) Event[T] {
	return Event[T]{Kind: Added, Item: item, Version: version}
}

func RemovedEvent[T any](item T, version int64) Event[T] {
	return Event[T]{Kind: Removed, Item: item, Version: version}
}

func ReplacedEvent[T any](oldItem, newItem T, version int64) Event[T] {
	return Event[T]{Kind: Replaced, Old: oldItem, Item: newItem, Version: version}
}

func ChangedEvent[T any](oldValue, newValue T, version int64) Event[T] {
	return Event[T]{Kind: Changed, Old: oldValue, Item: newValue, Version: version}
}

func InvalidatedEvent[T any](breaking bool) Event[T] {
	return Event[T]{Kind: Invalidated, Breaking: breaking}
}
