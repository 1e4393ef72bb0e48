// Package events broadcasts values to a dynamic set of subscribers.
//
// A Stream never blocks its publisher: every Subscription owns an unbounded
// Buffer that a pump goroutine drains into the subscription's channel.
// Values published before a subscriber registers are never delivered to it.
package events
