package responder

const (
	// 4xxx - client errors
	ErrCodeBadRequest       = 4000
	ErrCodeValidationFailed = 4002
	ErrCodeNotFound         = 4003
	ErrCodeUploadRejected   = 4010
	ErrCodeUnsupportedType  = 4011
	ErrCodeUploadTooLarge   = 4012

	// 5xxx - server errors
	ErrCodeInternalServer  = 5000
	ErrCodeImageProcessing = 5003
	ErrCodeStorageService  = 5004
)

var errorMessages = map[int]string{
	ErrCodeBadRequest:       "Bad Request",
	ErrCodeValidationFailed: "Validation Failed",
	ErrCodeNotFound:         "Resource Not Found",
	ErrCodeUploadRejected:   "Upload Rejected",
	ErrCodeUnsupportedType:  "Unsupported Image Type",
	ErrCodeUploadTooLarge:   "Upload Too Large",
	ErrCodeInternalServer:   "Internal Server Error",
	ErrCodeImageProcessing:  "Image Processing Failed",
	ErrCodeStorageService:   "Storage Error",
}

// GetErrorMessage returns the default message for code.
func GetErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown Error"
}

// NewError creates a new Error; an empty message takes the code default.
func NewError(code int, message string) Error {
	return NewErrorWithDetails(code, message, nil)
}

// NewErrorWithDetails creates a new Error with code, message and details
func NewErrorWithDetails(code int, message string, details any) Error {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return Error{
		Code:    code,
		Message: message,
		Details: details,
	}
}
