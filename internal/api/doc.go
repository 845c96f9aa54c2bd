// Package api exposes the HTTP surface: account signup and signin, agent
// listing, conversation CRUD, message sending, and transcript export.
//
// All conversation routes require a Bearer session token. Each
// authenticated owner is served by their own chat.Service, created on first
// use by the Registry.
package api
