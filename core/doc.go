// Package core provides the foundational domain types and interfaces used by
// Chorus. It defines the core abstractions for:
//
//   - Messages (immutable, ordered conversation entries tagged with the
//     request that produced them)
//   - Users (session identity carried into request records)
//   - RequestRecords (per-request fan-out state: status, responses, metadata)
//   - HistoryStore (pluggable conversation history persistence)
//   - CompletionObserver (per-backend completion notification hook)
//
// The package intentionally keeps implementation concerns (persistence,
// orchestration, concrete provider adapters) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
