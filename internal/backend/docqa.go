package backend

// UploadField is the multipart form field carrying the document
const UploadField = "file"

// UploadResponse represents the response body of POST /upload
type UploadResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AskRequest represents the request body of POST /ask
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse represents the response body of POST /ask.
// The service answers 200 with only Error set when no document is loaded.
type AskResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}
