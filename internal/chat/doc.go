// Package chat is the conversation core. It owns the gateway service that
// drives agent turns on behalf of authenticated users and the reconciler
// that turns raw checkpoint sequences into user-facing transcripts.
//
// The identity store and the checkpoint store are deliberately separate:
// thread ownership lives in the identity store, raw turns live in the
// checkpoint store keyed by the thread id string. This package is the only
// place the two are joined.
package chat
