// Package cli provides the interactive campusgive command-line client.
//
// It wires configuration, the persisted credential store, the backend client,
// the popup handshake driver and the session coordinator, then runs a REPL.
// Typical flow: check the stored session on startup, then let the user
// register, sign in with a password or a provider popup, and sign out.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
