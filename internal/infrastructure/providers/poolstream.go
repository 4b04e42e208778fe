package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// PoolStream is the low-latency complement to polling: a websocket feed
// of pool snapshots. When the feed drops, the ingestor keeps running on
// the polling path while the stream reconnects.
type PoolStream struct {
	url     string
	backoff time.Duration
	dial    func(ctx context.Context, url string) (*websocket.Conn, error)
}

func NewPoolStream(url string) *PoolStream {
	return &PoolStream{
		url:     url,
		backoff: 5 * time.Second,
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Run reads pool updates into out until ctx is canceled, reconnecting
// after failures. out is closed on return.
func (p *PoolStream) Run(ctx context.Context, out chan<- PoolData) {
	defer close(out)

	for ctx.Err() == nil {
		if err := p.consume(ctx, out); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("url", p.url).
				Dur("backoff", p.backoff).Msg("pool stream disconnected")
		}

		select {
		case <-ctx.Done():
		case <-time.After(p.backoff):
		}
	}
}

func (p *PoolStream) consume(ctx context.Context, out chan<- PoolData) error {
	conn, err := p.dial(ctx, p.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Info().Str("url", p.url).Msg("pool stream connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var pool PoolData
		if err := json.Unmarshal(raw, &pool); err != nil {
			log.Debug().Err(err).Msg("skipping malformed pool stream frame")
			continue
		}

		select {
		case out <- pool:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
