// Package client talks to the marketplace backend's auth endpoints.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the five
//     auth calls: VerifySession, Register, PasswordLogin, EstablishSession
//     and Logout.
//  2. A concrete HTTP implementation (see HTTPClient). Every request carries
//     Content-Type: application/json, the session cookie from a shared cookie
//     jar and, when the credential store holds one, an Authorization: Bearer
//     header.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring the
//     SQLite database and its embedded goose migrations.
//
// # Error Handling
//
// No call panics or leaks a raw transport error. Failures are always an
// *Error carrying a Kind, the HTTP status (0 for transport failures) and a
// human-readable message. Callers match broad classes with errors.Is:
// ErrUnavailable (network down, timeout, 502-504) and ErrUnauthorized
// (401, 403).
//
// Register and PasswordLogin return the decoded backend body even when they
// fail so that forms can show field-level validation messages.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept a
// context.Context and honor cancellation and the configured request timeout.
package client
