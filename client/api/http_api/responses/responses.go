package responses

// BaseResponse is the envelope every daemon endpoint answers with.
type BaseResponse struct {
	ErrorMessage string      `json:"error_message,omitempty"`
	Result       interface{} `json:"result"`
}
