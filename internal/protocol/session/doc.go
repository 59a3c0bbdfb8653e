// Package session owns the client-side session rules.
//
// Ownership boundary:
// - the phase table and the Machine that applies it
// - the single pending reply slot
// - connection and reply timing, retry backoff, TLS settings
//
// Nothing here does I/O; the client package drives it.
package session
