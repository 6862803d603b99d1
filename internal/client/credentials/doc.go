// Package credentials stores the single bearer token the client holds.
//
// The Store contract is deliberately infallible: Get and Set never return
// errors. PersistentStore writes through to the local SQLite database so the
// token survives restarts; when the disk write fails the failure is logged
// and the in-memory value stays authoritative for the running process.
//
// Only the session coordinator mutates a Store. Everything else reads it
// through the Reader interface, typically via the backend client when it
// attaches the Authorization header.
package credentials
