// Package checkpoint defines the durable conversation snapshot log. After
// every state-machine step the full conversation state is appended under its
// thread id; the latest record per thread is the resumable state, enabling
// crash/restart recovery mid-conversation. Implementations: a volatile
// in-memory store for tests and a SQLite store for durability.
package checkpoint
