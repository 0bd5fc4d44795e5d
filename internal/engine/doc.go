// Package engine implements the float dispatch pipeline.
//
// The engine owns the application State and the rule store. Every action
// passes through the same fixed chain:
//
//  1. Side-effect interceptors match the action by type. Their tool calls
//     start only once the action's reducer step is applied (stage 3), so an
//     action dropped by a halted cascade never calls out. Results are never
//     applied directly; they come back later as synthesized actions
//     dispatched like any other.
//  2. Registered rules are evaluated in registration order against a
//     snapshot of the rule store taken when the top-level dispatch began.
//     Each matching rule's actions are dispatched in order, each through the
//     full chain, before evaluation continues.
//  3. The reducer is applied to the action.
//
// A registered rule joins the store only after its middleware/register
// dispatch completes, so it never evaluates its own registration and a
// halted registration leaves the store unchanged.
//
// Single-Writer Loop:
// Run processes requests one at a time in FIFO order. State is written only
// from the Run goroutine, so no two reducer applications ever interleave.
// Dispatch and RegisterRule enqueue a request and wait for its reply.
// Suspension happens only in effect goroutines and in rule compilation,
// never in the writer.
//
// Recursion Guard:
// A rule cascade is processed with an explicit work stack. It halts with a
// RECURSION_LIMIT_EXCEEDED RuntimeError when a rule would fire an action
// already on its own ancestor path, when nesting exceeds the depth limit, or
// when one top-level dispatch exceeds its step quota. Steps already applied
// stay committed, and so do the effect calls they launched.
//
// Logical Clock:
// Every applied reducer step is stamped with a monotonic seq from Clock.Next.
// Wall-clock time is never used for ordering.
package engine
