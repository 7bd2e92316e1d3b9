// Package changefeed carries live insert/update notifications from the
// source collection to the sync engine.
//
// A Feed publishes Events, each holding the full current document, and hands
// out Streams. Subscribing pins the current end of the feed: a Stream only
// yields events published after Subscribe returned, so anything older must be
// recovered by a separate catch-up pass.
//
// # Backends
//
//   - redis: a Redis Stream written with XADD and read with blocking XREAD.
//   - kafka: a Kafka topic keyed by document id; subscriptions pin per
//     partition end offsets through kadm.
//   - memory: in-process fan-out for tests and single-process runs.
//
// # Usage
//
//	feed, err := changefeed.New(ctx, cfg.Feed)
//	stream, err := feed.Subscribe(ctx)
//	for {
//	    ev, err := stream.Next(ctx)
//	    ...
//	}
package changefeed
