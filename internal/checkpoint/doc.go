// Package checkpoint stores raw conversation turn sequences for the agent
// runtime.
//
// The log is keyed by opaque strings. In practice the key is the
// stringified thread ID from the identity store, but nothing here depends
// on that: the checkpoint database carries no foreign keys and no ownership
// information, and deleting a thread does not remove its sequence. That gap
// is deliberate; the two stores are independent and no operation pretends
// otherwise.
//
// Sequences are append-only. Every turn is tagged with one of a closed set
// of kinds (user, assistant, tool_call, tool_result); kinds introduced by
// future writers surface as KindUnknown on read and are skipped by
// consumers rather than failing the whole sequence.
package checkpoint
