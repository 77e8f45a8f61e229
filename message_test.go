package bgpio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader(msgLen int, msgType uint8) []byte {
	h := bytes.Repeat([]byte{0xFF}, markerLength)
	h = append(h, 0, 0, msgType)
	binary.BigEndian.PutUint16(h[markerLength:], uint16(msgLen))
	return h
}

func TestCheckHeader(t *testing.T) {
	tests := []struct {
		name        string
		header      []byte
		wantBody    int
		wantSubcode uint8
	}{
		{
			name:     "keepalive",
			header:   validHeader(headerLength, KeepAliveMessageType),
			wantBody: 0,
		},
		{
			name:     "open with body",
			header:   validHeader(headerLength+10, OpenMessageType),
			wantBody: 10,
		},
		{
			name:     "update with body",
			header:   validHeader(headerLength+23, UpdateMessageType),
			wantBody: 23,
		},
		{
			name:     "notification max length",
			header:   validHeader(maxMessageLength, NotificationMessageType),
			wantBody: maxMessageLength - headerLength,
		},
		{
			name: "bad marker",
			header: func() []byte {
				h := validHeader(headerLength, KeepAliveMessageType)
				h[7] = 0x00
				return h
			}(),
			wantSubcode: NOTIF_SUBCODE_CONN_NOT_SYNCHRONIZED,
		},
		{
			name:        "length below header size",
			header:      validHeader(headerLength-1, KeepAliveMessageType),
			wantSubcode: NOTIF_SUBCODE_BAD_MESSAGE_LEN,
		},
		{
			name:        "length above maximum",
			header:      validHeader(maxMessageLength+1, UpdateMessageType),
			wantSubcode: NOTIF_SUBCODE_BAD_MESSAGE_LEN,
		},
		{
			name:        "type zero",
			header:      validHeader(headerLength, 0),
			wantSubcode: NOTIF_SUBCODE_BAD_MESSAGE_TYPE,
		},
		{
			name:        "type five",
			header:      validHeader(headerLength, 5),
			wantSubcode: NOTIF_SUBCODE_BAD_MESSAGE_TYPE,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStream(maxMessageLength)
			s.put(tt.header)
			got, err := checkHeader(s)
			if tt.wantSubcode != 0 {
				require.Error(t, err)
				var fe *FramingError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, NOTIF_CODE_MESSAGE_HEADER_ERR,
					fe.Notification.Code)
				assert.Equal(t, tt.wantSubcode, fe.Notification.Subcode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

func TestStageMessage(t *testing.T) {
	s := newStream(maxMessageLength)
	body := []byte{0x01, 0x02, 0x03}
	stageMessage(s, NotificationMessageType, body)

	b := s.bytes()
	require.Len(t, b, headerLength+len(body))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, markerLength), b[:markerLength])
	assert.Equal(t, headerLength+len(body), messageLength(b))
	assert.Equal(t, NotificationMessageType, b[markerLength+2])
	assert.Equal(t, body, b[headerLength:])

	assert.Panics(t, func() {
		stageMessage(s, KeepAliveMessageType, nil)
	})
}

func TestNotificationRoundTrip(t *testing.T) {
	n := newNotification(NOTIF_CODE_CEASE, 2, []byte{0xAA, 0xBB})
	got, err := DecodeNotification(n.body())
	require.NoError(t, err)
	assert.Equal(t, n, got)

	_, err = DecodeNotification([]byte{NOTIF_CODE_CEASE})
	assert.Error(t, err)
}
