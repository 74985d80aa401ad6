package responses

// Success wraps every 2xx body.
type Success struct {
	Data any `json:"data"`
}

// Failure wraps every error body.
type Failure struct {
	Error Problem `json:"error"`
}

// Problem is the public shape of an error. Internal causes never appear here.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
