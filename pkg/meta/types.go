package meta

import "encoding/json"

// APIError is the error object the Graph API embeds in failure responses.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode,omitempty"`
}

// ListEnvelope is the standard list response shape: a data array plus an
// optional paging block, or an error object.
type ListEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Paging *Paging         `json:"paging,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// Paging holds cursor-based pagination info.
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next,omitempty"`
}

// ParseError extracts the upstream error message from a failure body.
// Returns empty string when the body carries no recognizable error object.
func ParseError(body []byte) string {
	var env ListEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Error == nil {
		return ""
	}
	return env.Error.Message
}
