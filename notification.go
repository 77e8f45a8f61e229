package bgpio

import (
	"fmt"
)

// Notification error codes and subcodes.
//
// https://tools.ietf.org/html/rfc4271#section-4.5
const (
	NOTIF_CODE_MESSAGE_HEADER_ERR uint8 = 1
	NOTIF_CODE_OPEN_MESSAGE_ERR   uint8 = 2
	NOTIF_CODE_UPDATE_MESSAGE_ERR uint8 = 3
	NOTIF_CODE_HOLD_TIMER_EXPIRED uint8 = 4
	NOTIF_CODE_FSM_ERR            uint8 = 5
	NOTIF_CODE_CEASE              uint8 = 6
)

const (
	NOTIF_SUBCODE_CONN_NOT_SYNCHRONIZED uint8 = 1
	NOTIF_SUBCODE_BAD_MESSAGE_LEN       uint8 = 2
	NOTIF_SUBCODE_BAD_MESSAGE_TYPE      uint8 = 3
)

var notifCodesMap = map[uint8]struct {
	desc     string
	subcodes map[uint8]string
}{
	NOTIF_CODE_MESSAGE_HEADER_ERR: {
		desc: "Message Header Error",
		subcodes: map[uint8]string{
			NOTIF_SUBCODE_CONN_NOT_SYNCHRONIZED: "Connection Not Synchronized",
			NOTIF_SUBCODE_BAD_MESSAGE_LEN:       "Bad Message Length",
			NOTIF_SUBCODE_BAD_MESSAGE_TYPE:      "Bad Message Type",
		},
	},
	NOTIF_CODE_OPEN_MESSAGE_ERR:   {desc: "OPEN Message Error"},
	NOTIF_CODE_UPDATE_MESSAGE_ERR: {desc: "UPDATE Message Error"},
	NOTIF_CODE_HOLD_TIMER_EXPIRED: {desc: "Hold Timer Expired"},
	NOTIF_CODE_FSM_ERR:            {desc: "Finite State Machine Error"},
	NOTIF_CODE_CEASE:              {desc: "Cease"},
}

// Notification is a NOTIFICATION message.
type Notification struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

func newNotification(code, subcode uint8, data []byte) *Notification {
	return &Notification{
		Code:    code,
		Subcode: subcode,
		Data:    data,
	}
}

// DecodeNotification decodes a NOTIFICATION message body.
func DecodeNotification(body []byte) (*Notification, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("notification message too short (%d bytes)",
			len(body))
	}
	n := &Notification{
		Code:    body[0],
		Subcode: body[1],
	}
	if len(body) > 2 {
		n.Data = make([]byte, len(body)-2)
		copy(n.Data, body[2:])
	}
	return n, nil
}

func (n *Notification) body() []byte {
	b := make([]byte, 2, 2+len(n.Data))
	b[0] = n.Code
	b[1] = n.Subcode
	return append(b, n.Data...)
}

func (n *Notification) Error() string {
	var codeDesc, subcodeDesc string
	d, ok := notifCodesMap[n.Code]
	if ok {
		codeDesc = d.desc
		s, ok := d.subcodes[n.Subcode]
		if ok {
			subcodeDesc = s
		}
	}
	return fmt.Sprintf("notification code:%d (%s) subcode:%d (%s)",
		n.Code, codeDesc, n.Subcode, subcodeDesc)
}

// FramingError reports a message header violation: bad marker, bad declared
// length, or an undefined type code. It carries the NOTIFICATION the peer
// should be sent in response; the decision to send it belongs to the FSM.
type FramingError struct {
	Notification *Notification
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("message header error: %v", e.Notification)
}
