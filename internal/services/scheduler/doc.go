// Package scheduler reconciles pending timed deliveries against the feed.
//
// # Overview
//
// Each poll cycle hands the scheduler the freshly fetched announcement list.
// For every announcement the scheduler makes an independent judgment call:
// ignore it, deliver it immediately, arm a new timer, re-arm an existing one,
// or do nothing. The in-memory reservation table (key -> pending delivery)
// is the only state; it is rebuilt continuously from the feed and never
// persisted.
//
// # Decision ladder
//
// In order, per announcement:
//
//  1. Drop if key, timestamp or message is missing (message emptiness is
//     checked after trimming).
//  2. Drop if the timestamp does not parse.
//  3. Drop if the target is further out than MaxFuture; a later poll will
//     pick it up once it is closer.
//  4. If the target has passed but by no more than LateGrace, cancel any
//     pending reservation for the key and deliver synchronously.
//     Older than that is dropped silently.
//  5. Otherwise arm a one-shot timer. A pending reservation whose target
//     differs by less than RescheduleThreshold is left alone; a larger
//     difference cancels the old timer and arms a fresh one.
//
// # Invariants
//
// At most one live timer exists per key. All cancel-then-replace sequences
// run under the table lock, and a firing timer re-checks that its
// reservation is still current before delivering, so a cancelled timer can
// never produce a duplicate send.
//
// A key that disappears from the feed does NOT cancel its reservation; an
// armed delivery fires even if later fetches omit it. This tolerates
// transient feed omissions.
package scheduler
