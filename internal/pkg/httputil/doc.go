// Package httputil holds the JSON request/response helpers shared by the
// admin API handlers.
//
// Handlers go through these helpers rather than writing to the
// http.ResponseWriter directly, so every endpoint emits the same JSON
// envelope and error shape.
package httputil
