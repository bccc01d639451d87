// Package chatgateway implements chat.Client against a JSON-over-HTTP bridge
// in front of the chat platform's user API.
//
// Every call is a POST to <base>/<method> with a JSON body and a bearer
// token. The bridge answers {"ok": true, "result": ...} on success and
// {"ok": false, "error": "...", "code": "...", "retry_after": N} on failure.
// A positive retry_after (or HTTP 429) becomes a *chat.FloodWaitError and the
// code NOT_CACHED from resolvePeer becomes chat.ErrNotCached.
package chatgateway
