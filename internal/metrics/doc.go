// Package metrics exposes connection counters in Prometheus text format.
//
// Key metrics:
//   - Connect attempts, failures, and reconnects
//   - Messages received and sent, send failures
//   - Decode failures and dropped (binary/unknown) frames
//   - Times automatic reconnection gave up
package metrics
