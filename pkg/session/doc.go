/*
Package session serializes work on a conversation thread.

Two submits for the same thread must never interleave: both would load the same
history and the second save would silently drop the first cycle. The Manager
hands out per-thread locks (reference counted, so idle threads cost nothing),
either queueing contenders or rejecting them with domain.ErrThreadBusy, and can
additionally take a distributed lock so several replicas share one store safely.
*/
package session
