// Package ratelimit holds the global FloodWait governor shared by every
// dispatcher. A positive wait is a hard stop: no task of any type is claimed
// until it has elapsed.
package ratelimit
