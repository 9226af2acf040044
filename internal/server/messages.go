package server

// Message Type Constants
const (
	// MsgCheckImage checks an image sent inline with the request.
	MsgCheckImage = "check_image"
	// MsgCheckPath checks an image the server can load by name.
	MsgCheckPath = "check_path"
)

// --- Payload Structs ---

type CheckImageRequest struct {
	Image []byte `json:"image"`
}

type CheckPathRequest struct {
	Path string `json:"path"`
}

// CheckImageResponse is the JSON body of an OK answer to either check
// message. Message is the exact diagnostic line, empty when OK is true.
type CheckImageResponse struct {
	RunID    string `json:"runId"`
	OK       bool   `json:"ok"`
	Check    int    `json:"check,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
	Geometry string `json:"geometry"`
}
