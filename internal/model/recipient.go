package model

// Failure reasons recorded when no gateway call was made.
const (
	ReasonInvalidNumber  = "invalid_number"
	ReasonMissingMessage = "missing_message"
	ReasonNoPhone        = "no_phone"
)

// Recipient is the outcome of one send attempt. It only lives for the duration
// of a dispatch unless it failed, in which case it becomes a FailedSMS.
type Recipient struct {
	Number     string `json:"number"`
	Normalized string `json:"normalized"`
	Message    string `json:"message,omitempty"`
	Sent       bool   `json:"-"`
	Info       string `json:"info,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Detail is the text kept on a failure record: the gateway response when there
// was one, the local reason otherwise.
func (r Recipient) Detail() string {
	if r.Info != "" {
		return r.Info
	}
	return r.Reason
}
