// Package handlers defines the stable error codes returned in the error
// envelope. Clients branch on the code; the message is for humans.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "movie info not found"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// ErrCodeIdempotencyConflict: the key is still live but the record it
	// produced is gone.
	ErrCodeIdempotencyConflict = "idempotency_conflict"

	// Storage failures, one per operation.
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeGetFailed    = "get_failed"
	ErrCodeDeleteFailed = "delete_failed"
)
