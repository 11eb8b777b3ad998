// Package httpx writes coded JSON errors.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Code is an error code.
type Code int

const (
	// Code specifically for the signal server.
	ErrInvalidSession Code = iota + 10000
	ErrInvalidOffer
	ErrSessionConflict
	ErrUnknownSession
	ErrInvalidCandidate
	ErrFailedToAnswer
	ErrUnauthorized
	ErrRateLimited

	// Code for Common errors.
	ErrUnmarshalJSON
)

// Errors maps error code to error message.
var Errors = map[Code]string{
	ErrInvalidSession:   "Missing stream id or session id",
	ErrInvalidOffer:     "Invalid SDP offer",
	ErrSessionConflict:  "Session already negotiated with another offer",
	ErrUnknownSession:   "Session not found",
	ErrInvalidCandidate: "Invalid ICE candidate",
	ErrFailedToAnswer:   "Failed to answer offer",
	ErrUnauthorized:     "Missing or invalid bearer token",
	ErrRateLimited:      "Too many candidates",
	ErrUnmarshalJSON:    "Could not unmarshal JSON data",
}

// Error is the JSON body of an error response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Write replies with status and the message of code.
func Write(w http.ResponseWriter, status int, code Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Error{Code: code, Message: Errors[code]})
}
