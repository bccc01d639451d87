// Package dispatch claims queued tasks, runs them through the executors and
// writes the outcome back to the task store and the rate-limit governor.
//
// Dispatcher.ProcessOne is the single step both loop shapes are built on. It
// re-reads the governor before every claim and never claims while a platform
// wait is in effect.
//
// Chain is the self-chaining shape for short-lived request handlers: each
// invocation handles at most one task and leaves exactly one continuation
// behind, recorded durably and handed to a Scheduler. Loop is the persistent
// shape: it drains the queues in order with a fixed pause between tasks and
// idles when a pass finds nothing.
package dispatch
