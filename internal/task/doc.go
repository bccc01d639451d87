// Package task defines queued units of work for the chat automation pipeline:
// the closed set of task types and their payload schemas, the lifecycle
// statuses, and the Store contract (enqueue, atomic claim, resolve) that every
// dispatcher goes through. Tasks are durable so that work survives restarts and
// can be driven either by short-lived request handlers or a long-running loop.
package task
