// Package chat implements the client-side synchronization engine that keeps a
// local view of the shared, append-only message log consistent with the
// server.
//
// Two transport strategies implement one contract (Transport):
//   - PollTransport: repeated bounded-wait long-polls carrying a watermark
//     (since_id). The server holds each request open until a new message
//     exists or its own timeout elapses.
//   - PushTransport: one persistent websocket over which the server emits
//     chat_message events. Reconnection is automatic with exponential
//     backoff; the engine only reflects connectivity transitions.
//
// The Controller owns the lifecycle: one snapshot fetch to seed the LogView,
// then a single guarded sync loop that advances the Watermark and appends
// batches in arrival order. Merges are idempotent (dedup by id) and the
// watermark is monotonic, so a stale in-flight response completing after a
// suspend/resume cycle is harmless.
package chat
