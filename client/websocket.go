package client

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamBaseDelay = time.Second
	streamMaxDelay  = time.Minute
)

// StatusStream maintains the websocket connection that carries execution
// status events. It reconnects with exponential backoff until the context is
// cancelled, resetting the backoff after each successful connect.
type StatusStream struct {
	url    string
	dialer *websocket.Dialer
	events chan Event
}

func newStatusStream(url string) *StatusStream {
	return &StatusStream{
		url:    url,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 16),
	}
}

// Events returns the channel status events arrive on. The channel closes
// when the stream shuts down.
func (s *StatusStream) Events() <-chan Event {
	return s.events
}

// run dials, reads until the connection drops, and redials. Exits when ctx
// is cancelled.
func (s *StatusStream) run(ctx context.Context) {
	defer close(s.events)

	retries := 0
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := reconnectDelay(retries)
			retries++
			log.Warn().Str("url", s.url).Err(err).Dur("retry_in", delay).Msg("status socket dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		retries = 0
		log.Debug().Str("url", s.url).Msg("status socket connected")

		s.readLoop(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *StatusStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	// unblock ReadMessage when the context is cancelled
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		kind, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("status socket read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			// preview frames arrive as binary, not part of the status feed
			continue
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Warn().Err(err).Msg("undecodable status event")
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func reconnectDelay(retries int) time.Duration {
	// cap the exponent before multiplying; past this point the doubling
	// would overflow time.Duration long before the max-delay check runs
	if retries > 20 {
		return streamMaxDelay
	}
	delay := streamBaseDelay * time.Duration(math.Pow(2, float64(retries)))
	if delay > streamMaxDelay {
		delay = streamMaxDelay
	}
	return delay
}
