// Package model defines the data types shared by the relay client.
//
// Conventions:
//   - Messages are immutable values compared structurally (see Message.Equal)
//   - Events are either a received Message or a failure
//   - Failures carry an error kind from the taxonomy in errors.go
package model
