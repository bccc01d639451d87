// Package redis provides the Redis backend for the FloodWait governor, for
// deployments where several dispatchers share one Redis but not one database.
package redis
