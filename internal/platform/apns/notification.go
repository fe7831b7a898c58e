package apns

import (
	"strconv"

	"github.com/sideshow/apns2"
)

// Compiler builds the wire headers and body of a notification. The same
// compiled notification is sent to every device of a Send call.
type Compiler interface {
	Headers() map[string]string
	Compile() ([]byte, error)
}

// Notification adapts an apns2.Notification to Compiler. DeviceToken is
// ignored; devices are passed to Send.
type Notification struct {
	*apns2.Notification
}

func (n Notification) Headers() map[string]string {
	h := make(map[string]string)
	if n.ApnsID != "" {
		h["apns-id"] = n.ApnsID
	}
	if n.CollapseID != "" {
		h["apns-collapse-id"] = n.CollapseID
	}
	if n.Priority > 0 {
		h["apns-priority"] = strconv.Itoa(n.Priority)
	}
	if n.Topic != "" {
		h["apns-topic"] = n.Topic
	}
	if !n.Expiration.IsZero() {
		h["apns-expiration"] = strconv.FormatInt(n.Expiration.Unix(), 10)
	}
	if n.PushType != "" {
		h["apns-push-type"] = string(n.PushType)
	}
	return h
}

// Compile returns string and []byte payloads as raw JSON and marshals
// anything else.
func (n Notification) Compile() ([]byte, error) {
	return n.Notification.MarshalJSON()
}
