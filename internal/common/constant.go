// Package common contains constants and small helpers shared by the client
// packages.
package common

// Header names and values used on every backend request.
const (
	AuthorizationHeaderName = "Authorization"
	BearerScheme            = "Bearer"
	ContentTypeHeaderName   = "Content-Type"
	ContentTypeJSON         = "application/json"
)

// CredentialMetadataKey is the single metadata key the bearer token lives under.
const CredentialMetadataKey = "bearer_token"

// CredentialUpdatedAtMetadataKey records when the token was last replaced.
const CredentialUpdatedAtMetadataKey = "bearer_token_updated_at"
