package bgpio

import (
	"encoding/binary"
)

// BGP message type codes.
const (
	OpenMessageType         uint8 = 1
	UpdateMessageType       uint8 = 2
	NotificationMessageType uint8 = 3
	KeepAliveMessageType    uint8 = 4
)

const (
	markerLength     = 16
	headerLength     = 19
	maxMessageLength = 4096
)

// checkHeader validates the message header sitting at the start of the
// stream: the marker must be all-ones, the declared length must fit in
// [headerLength, maxMessageLength], and the type must be one of the four
// defined codes. It returns the number of body bytes still to be read.
func checkHeader(s *stream) (int, error) {
	b := s.bytes()
	if len(b) < headerLength {
		n := newNotification(NOTIF_CODE_MESSAGE_HEADER_ERR,
			NOTIF_SUBCODE_BAD_MESSAGE_LEN, nil)
		return -1, &FramingError{Notification: n}
	}
	for i := 0; i < markerLength; i++ {
		if b[i] != 0xFF {
			n := newNotification(NOTIF_CODE_MESSAGE_HEADER_ERR,
				NOTIF_SUBCODE_CONN_NOT_SYNCHRONIZED, nil)
			return -1, &FramingError{Notification: n}
		}
	}
	// length is inclusive of header
	msgLen := int(binary.BigEndian.Uint16(b[markerLength : markerLength+2]))
	if msgLen < headerLength || msgLen > maxMessageLength {
		badLen := make([]byte, 2)
		binary.BigEndian.PutUint16(badLen, uint16(msgLen))
		n := newNotification(NOTIF_CODE_MESSAGE_HEADER_ERR,
			NOTIF_SUBCODE_BAD_MESSAGE_LEN, badLen)
		return -1, &FramingError{Notification: n}
	}
	t := b[markerLength+2]
	if t < OpenMessageType || t > KeepAliveMessageType {
		n := newNotification(NOTIF_CODE_MESSAGE_HEADER_ERR,
			NOTIF_SUBCODE_BAD_MESSAGE_TYPE, []byte{t})
		return -1, &FramingError{Notification: n}
	}
	return msgLen - headerLength, nil
}

// stageMessage assembles a complete message, header included, into the
// stream. The stream must be empty.
func stageMessage(s *stream, t uint8, body []byte) {
	if s.len() != 0 {
		panic("bgpio: staging into non-empty stream")
	}
	h := make([]byte, headerLength)
	for i := 0; i < markerLength; i++ {
		h[i] = 0xFF
	}
	binary.BigEndian.PutUint16(h[markerLength:], uint16(headerLength+len(body)))
	h[markerLength+2] = t
	s.put(h)
	s.put(body)
}

// messageLength reads the declared total length of the message whose header
// starts at b.
func messageLength(b []byte) int {
	return int(binary.BigEndian.Uint16(b[markerLength : markerLength+2]))
}
