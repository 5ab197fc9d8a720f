// Package reactive implements push-based incremental reactive collections. A pipeline is a DAG of
// nodes: mutable roots (Collection, Value) at the bottom and operators (Select, Where,
// SelectMany, Union, GroupBy, Materialize, Some) on top. Every node has a monotonic version and
// is evaluated lazily: reading a node recomputes its value only if one of its inputs moved to a
// new version since the last read.
//
// Once a node has observers it subscribes to its inputs and propagates changes in push mode.
// Item-level deltas (added, removed, replaced) are forwarded to observers that understand them,
// everything else falls back to invalidation. A breaking invalidation tells the observers to
// discard what they derived from the node and re-read it.
//
// Key components:
//   - Source, CollectionSource: the read interface of a node.
//   - Observer, CollectionObserver, ValueObserver: the notification contracts.
//   - UpdateScope: batches the changes of one update under a single new version.
//   - Collector: records the sources a user function reads, which become dependencies of the
//     node running the function.
//   - Items: the immutable, lazy or materialized, value of a collection.
//
// Nodes are safe for concurrent use. A node is locked while it evaluates or updates, and
// re-entering a node from the goroutine that holds it panics with ErrReentrant.
//
// Example usage:
//
//	numbers := reactive.NewCollection[int]()
//	numbers.AddRange(1, 2, 3)
//	doubled := reactive.Select(numbers, func(x int) int { return 2 * x })
//	doubled.GetValue(ctx).Slice() // [2 4 6]
//	sub := doubled.AddObserver(reactive.CollectionObserverFuncs[int]{
//		AddedFunc: func(_ *reactive.Subscription, item int, _ int64) { fmt.Println("added", item) },
//	})
//	defer sub.Dispose()
//	numbers.Add(4) // prints "added 8"
package reactive
