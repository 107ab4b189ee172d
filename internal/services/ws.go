package services

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

const reconnectDelay = 5 * time.Second

// PushListener subscribes to the server push channel and wakes the poller
// when new jobs are announced. It only shortens the wait between cycles;
// jobs are still fetched and processed by the polling loop.
type PushListener struct {
	url          string
	apiKey       string
	restaurantID string
	dialer       *websocket.Dialer
	retryDelay   time.Duration

	onJobs     func()
	onPrinters func()

	connected atomic.Bool
	logger    zerolog.Logger
}

func NewPushListener(config model.Config, onJobs, onPrinters func()) *PushListener {
	return &PushListener{
		url:          config.WsURL,
		apiKey:       config.APIKey,
		restaurantID: config.RestaurantID,
		dialer:       websocket.DefaultDialer,
		retryDelay:   reconnectDelay,
		onJobs:       onJobs,
		onPrinters:   onPrinters,
		logger:       observability.Component("push"),
	}
}

// Connected reports whether the push channel is currently up.
func (l *PushListener) Connected() bool {
	return l.connected.Load()
}

// Run keeps the subscription alive until ctx is cancelled.
func (l *PushListener) Run(ctx context.Context) {
	if l.url == "" {
		l.logger.Info().Msg("No push URL configured, relying on polling only")
		return
	}

	header := http.Header{}
	if l.apiKey != "" {
		header.Add("X-Api-Key", l.apiKey)
	}

	l.logger.Info().Str("url", l.url).Msg("Connecting to WebSocket...")

	for {
		conn, _, err := l.dialer.DialContext(ctx, l.url, header)
		if err != nil {
			l.logger.Warn().Err(err).Dur("retry_in", l.retryDelay).Msg("Connection failed")
		} else {
			l.logger.Info().Msg("Connected")
			l.connected.Store(true)
			l.handleConnection(ctx, conn)
			l.connected.Store(false)
			conn.Close()
			l.logger.Info().Dur("retry_in", l.retryDelay).Msg("Disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *PushListener) handleConnection(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadJSON on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	regMsg := model.WSMessage{
		Type:         model.MessageTypeRegister,
		RestaurantID: l.restaurantID,
	}
	if err := conn.WriteJSON(regMsg); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to send register")
		return
	}

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				l.logger.Warn().Err(err).Msg("Read error")
			}
			return
		}

		switch msg.Type {
		case model.MessageTypeRegistered:
			l.logger.Info().Msg("Successfully registered with server")

		case model.MessageTypePing:
			if err := conn.WriteJSON(model.WSMessage{Type: model.MessageTypePong, RestaurantID: l.restaurantID}); err != nil {
				l.logger.Warn().Err(err).Msg("Failed to send pong")
				return
			}

		case model.MessageTypeJobsAvailable:
			l.logger.Debug().Str("job_id", msg.JobID).Msg("Print jobs available")
			if l.onJobs != nil {
				l.onJobs()
			}

		case model.MessageTypePrintersSync:
			l.logger.Debug().Msg("Printers updated on server")
			if l.onPrinters != nil {
				l.onPrinters()
			}

		case model.MessageTypeUnregister:
			l.logger.Info().Msg("Server requested unregister")
			return

		default:
			l.logger.Debug().Str("type", string(msg.Type)).Msg("Unknown message type")
		}
	}
}
