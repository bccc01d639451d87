// Package mocks provides shared fakes for testing.
//
// FakeChatClient stands in for the chat platform: it keeps per-group state,
// counts calls per method, and lets a test queue failures (for example a
// *chat.FloodWaitError) for the next call of a given method.
//
// EcosystemRegistry is an in-memory ecosystem registry for provisioning tests.
package mocks
