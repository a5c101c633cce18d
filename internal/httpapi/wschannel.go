package httpapi

import (
	"context"
	"io"

	"github.com/coder/websocket"
)

// maxAudioFrame bounds a single inbound websocket message. Asterisk external
// media sends 20ms slin16 frames (640 bytes), so this is generous headroom.
const maxAudioFrame = 1 << 16

// wsChannel adapts a websocket connection to the stream.MediaChannel
// interface. Reads and writes carry raw PCM as binary messages; text
// messages are skipped.
type wsChannel struct {
	conn *websocket.Conn
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	conn.SetReadLimit(maxAudioFrame)
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil, io.EOF
			}
			return nil, err
		}
		if typ != websocket.MessageBinary {
			continue
		}
		return data, nil
	}
}

func (c *wsChannel) Write(ctx context.Context, pcm []byte) error {
	return c.conn.Write(ctx, websocket.MessageBinary, pcm)
}
