// Package domain contains the business entities that outlive a single task:
// provisioned ecosystems and their short links. Queued work itself lives in
// package task.
package domain
