// Package provision creates a complete ecosystem for a street address: a
// forum group with its fixed topics, companion bots, an invite link, the
// persisted Ecosystem record, and the deferred welcome message and election
// poll. Steps run in a fixed order with no compensating rollback; a run that
// stops part way leaves the Ecosystem marked incomplete.
package provision
