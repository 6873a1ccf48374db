// Package engine runs a population of agents and locations through discrete
// timesteps.
//
// Every timestep has two phases. In the agent phase the infection outcomes
// and contact reports queued for the timestep are drained, sorted by
// destination, and handed to the agents in ascending id order; agents emit
// visits and new reports. In the location phase the visits are drained,
// sorted, and handed to the locations in ascending id order; locations emit
// the outcomes the agents will see next timestep. Observers see every entity
// once per phase and are aggregated when the timestep ends.
//
// Three strategies run this protocol:
//
//   - Serial: one goroutine, double-buffered queues.
//   - Parallel: a worker pool pulling fixed-size chunks of entities, with
//     partitioned queues shared by the workers.
//   - Distributed: Parallel on one node of a cluster, routing messages for
//     entities owned elsewhere through a DistributedManager.
//
// Given deterministic entities, all three deliver the same messages to the
// same entities in the same order, so their observations are comparable.
//
// Routing violations (a message for an unknown entity, messages left over
// after every entity took its share, a visit that does not last) are fatal:
// they are logged and panic with an *invariant.Error. Step returns errors
// only for cancellation between timesteps and for failed aggregation.
package engine
