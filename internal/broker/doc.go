// Package broker implements the message plumbing of the stepwise engine.
//
// Everything that produces messages does so through a Broker: a send-only
// sink for batches of one record type. Sends never fail and never block on
// capacity; buffers grow as needed.
//
// Queue lifecycle:
//
// Queues separate a "fill" side, which receives sends, from a "drain" side,
// which a phase consumes. Consume swaps the two and returns a handle over the
// drained messages; Release clears the drained side and, when nothing was sent
// meanwhile, swaps the buffers back so their capacity is reused.
//
//   - DoubleBuffer: single goroutine only (Serial strategy)
//   - PartitionedQueue: one sub-buffer per chunk, one mutex for sends and
//     swaps (Parallel and Distributed strategies)
//
// Brokers never retain the batch slice passed to Send. Callers may reuse it.
package broker
