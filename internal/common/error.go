// Package common defines sentinel errors shared by the server and client
// layers. Callers match them with errors.Is.
package common

import "errors"

var (
	// Lookup errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Validation errors.
	ErrorInvalidInput = errors.New("invalid input")
)
