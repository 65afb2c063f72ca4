// Package google provides OAuth2 authentication and token management for the
// Google Sheets and Drive APIs.
//
// Credentials come from an installed-app client secret (credentials.json).
// Tokens are cached as JSON on disk and refreshed tokens are written back,
// so the browser consent flow only runs when no usable token exists.
//
// The TokenProvider interface lets callers check for and fetch tokens without
// triggering the interactive flow.
package google
