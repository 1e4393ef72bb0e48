// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one logical connection to a remote endpoint
//   - Opens a fresh transport handle on every connect and reconnect
//   - Decodes inbound text frames and publishes them as events
//   - Handles reconnection with exponential backoff, up to a retry limit
//   - Publishes status changes on a separate stream
//
// The Transport interface is the only thing the manager knows about the
// network. NewWebSocketTransport provides the production implementation.
package connection
