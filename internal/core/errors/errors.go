package errors

const (
	HttpInternalError               = "internal_error"
	HttpInvalidJsonError            = "invalid_json"
	HttpPayloadTooLargeError        = "payload_too_large"
	HttpRecordValidationError       = "record_validation_failed"
	HttpDuplicateRecordError        = "duplicate_record"
	HttpInvalidOptionsError         = "invalid_options"
	HttpUnsupportedBackendOperation = "unsupported_backend_operation"
	HttpRuleNotFoundError           = "rule_not_found"
	HttpTooManyBucketsError         = "too_many_buckets"
)

// ErrorResponse is the error response body for every API error.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
