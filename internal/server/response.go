package server

// APIError is the error part of the response envelope.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *APIError      `json:"error,omitempty"`
}

func Success(data any, meta map[string]any) APIResponse {
	return APIResponse{Data: data, Meta: meta}
}

func Failure(status int, msg string) APIResponse {
	return APIResponse{Error: &APIError{Code: status, Message: msg}}
}
