// Package api exposes the HTTP JSON surface under /api/v1: login, user
// and thread management, and the chatbot endpoints. Handlers translate
// between wire shapes and the store/chat layers; all policy lives below.
package api
