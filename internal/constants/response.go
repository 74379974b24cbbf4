package constants

// Standard Response Field Keys
const (
	ResponseFieldData       = "data"
	ResponseFieldMessage    = "message"
	ResponseFieldDetails    = "details"
	ResponseFieldError      = "error"
	ResponseFieldErrorCode  = "error_code"
	ResponseFieldSuccess    = "success"
	ResponseFieldRetryAfter = "retry_after"
)

// Response Format Functions
func BuildErrorResponse(message string, details any) map[string]any {
	response := map[string]any{
		ResponseFieldSuccess: false,
		ResponseFieldMessage: message,
	}

	if details != nil {
		response[ResponseFieldDetails] = details
	}

	return response
}

// BuildCodedErrorResponse adds the machine-readable error code and, when
// positive, the number of seconds a client should wait before retrying.
func BuildCodedErrorResponse(message, code string, retryAfter int) map[string]any {
	response := BuildErrorResponse(message, nil)
	response[ResponseFieldErrorCode] = code
	if retryAfter > 0 {
		response[ResponseFieldRetryAfter] = retryAfter
	}
	return response
}

func BuildSuccessResponse(message string) map[string]any {
	return map[string]any{
		ResponseFieldSuccess: true,
		ResponseFieldMessage: message,
	}
}

func BuildDataResponse(message string, data any) map[string]any {
	response := BuildSuccessResponse(message)
	response[ResponseFieldData] = data
	return response
}
