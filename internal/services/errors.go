// Package services defines the application logic for movie-info records and
// the demo streaming endpoints. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrMovieInfoNotFound signals the absence of a record for the requested
	// id. It is an absence marker, not a failure.
	ErrMovieInfoNotFound = errors.New("movie info not found")
)
