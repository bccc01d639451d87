// Package postgres provides PostgreSQL implementations of the task store,
// the FloodWait governor, the ecosystem and short link repositories, and the
// dispatch continuation store. All of them accept a store.DBTX so they run
// equally on a pool or inside a transaction.
package postgres
