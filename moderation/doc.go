// Package moderation contains the shared decision contract for the sentry
// moderation pipeline: the action enum, risk levels, and the Decision type
// returned to callers.
//
// A nil *Decision means "not evaluated" (the pipeline was never initialized).
// A Decision with ActionNone means the message was evaluated and found clean.
// The two must never be conflated.
package moderation
