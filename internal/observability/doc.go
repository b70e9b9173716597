// Package observability builds the structured logger shared by the
// authorizer and the todo API.
//
// Logs are JSON in deployed environments and console-formatted locally.
// Callers receive a *zap.Logger; nothing here keeps global state.
package observability
