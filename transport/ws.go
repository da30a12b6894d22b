package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/keycard-tech/hwlink/channel"
	"github.com/rs/zerolog/log"
)

// WS is a channel.Transport over a websocket APDU bridge: each binary
// message carries exactly one command or one response. Useful when the
// device is attached to another host.
type WS struct {
	conn     *websocket.Conn
	notifier *channel.Notifier

	mu     sync.Mutex
	closed bool
}

// DialWS connects to a bridge endpoint like ws://localhost:8546/device.
func DialWS(url string, notifier *channel.Notifier) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Error().Err(err).Msgf("transport: error dialing bridge %s", url)
		return nil, err
	}
	log.Debug().Msgf("transport: connected to bridge %s", url)
	return &WS{conn: conn, notifier: notifier}, nil
}

// Exchange sends one command and waits for the matching response message.
// The bridge is single-flight by construction: the channel above never
// issues overlapping exchanges.
func (t *WS) Exchange(command []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport: bridge closed")
	}

	if err := t.conn.WriteMessage(websocket.BinaryMessage, command); err != nil {
		log.Error().Err(err).Msg("transport: error writing to bridge")
		t.notifier.Notify(channel.Event{Kind: channel.EventDisconnect, Err: err})
		return nil, err
	}

	for {
		kind, resp, err := t.conn.ReadMessage()
		if err != nil {
			log.Error().Err(err).Msg("transport: error reading from bridge")
			t.notifier.Notify(channel.Event{Kind: channel.EventDisconnect, Err: err})
			return nil, err
		}
		if kind != websocket.BinaryMessage {
			log.Trace().Msgf("transport: ignoring non-binary bridge message")
			continue
		}
		return resp, nil
	}
}

// Close closes the websocket connection.
func (t *WS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
