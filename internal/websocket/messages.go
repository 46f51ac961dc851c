package websocket

// Message types exchanged with the browser.
const (
	// server -> browser
	TypeState  = "state"
	TypePlay   = "play"
	TypeCancel = "cancel"

	// browser -> server
	TypeEnded = "ended"
	TypeError = "error"
)

type Message struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Epoch    string `json:"epoch,omitempty"`
	Revision uint64 `json:"revision,omitempty"`
	HTML     string `json:"html,omitempty"`
	Error    string `json:"error,omitempty"`
}
