// Package chat defines the contract of the external chat platform client, the
// error shapes it reports, and the Resolver that turns a chat id into a handle
// the client accepts. The wire format of the platform lives behind Client.
package chat
