package models

// APIResponse is the uniform envelope for admin and webhook endpoints.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Success wraps a result in an ok envelope.
func Success(result any) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage wraps a result and a human-readable note.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error builds an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
