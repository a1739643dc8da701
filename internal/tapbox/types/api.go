package types

// CardRequest is the JSON body accepted by the add/delete card endpoints.
type CardRequest struct {
	UID       string `json:"uid"`
	Color     string `json:"color,omitempty"`
	Animation string `json:"animation,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type MessageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Restart bool   `json:"restart,omitempty"`
}
