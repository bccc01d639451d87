// Package executor turns a claimed task into platform calls. Each task type
// has one handler; Classify maps whatever a handler returns onto the four
// outcomes the dispatcher knows how to persist.
package executor
