package thermal

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
	DefaultTimeout    = 5 * time.Second
)

// DialFunc opens a connection to a printer. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// TransportError is returned once every attempt to reach a printer failed.
// Err is the error of the last attempt.
type TransportError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("print to %s failed after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Sender delivers raw byte streams to network printers over TCP. Each attempt
// opens a fresh connection, writes the whole buffer and closes it.
type Sender struct {
	Attempts   int
	RetryDelay time.Duration
	Timeout    time.Duration
	Dial       DialFunc

	logger zerolog.Logger
}

func NewSender(cfg model.Config) *Sender {
	s := &Sender{
		Attempts:   cfg.PrintRetryAttempts,
		RetryDelay: cfg.PrintRetryDelay(),
		Timeout:    cfg.PrintTimeout(),
		logger:     observability.Component("thermal"),
	}
	return s
}

// Send writes data to ip:port, retrying on failure. A non-positive port
// means 9100. The context only interrupts the wait between attempts.
func (s *Sender) Send(ctx context.Context, ip string, port int, data []byte) error {
	if port <= 0 {
		port = model.DefaultPrinterPort
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	attempts := s.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.sendOnce(addr, data)
		observability.RecordPrintAttempt(err == nil)
		if err == nil {
			s.logger.Debug().Str("printer", addr).Int("attempt", attempt).Int("bytes", len(data)).Msg("Sent to printer")
			return nil
		}
		lastErr = err
		s.logger.Warn().Err(err).Str("printer", addr).Int("attempt", attempt).Int("max_attempts", attempts).Msg("Print attempt failed")

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return &TransportError{Addr: addr, Attempts: attempt, Err: lastErr}
			case <-time.After(s.retryDelay()):
			}
		}
	}
	return &TransportError{Addr: addr, Attempts: attempts, Err: lastErr}
}

func (s *Sender) sendOnce(addr string, data []byte) error {
	timeout := s.timeout()

	dialCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := s.dial()(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		data = data[n:]
	}
	return nil
}

func (s *Sender) dial() DialFunc {
	if s.Dial != nil {
		return s.Dial
	}
	var d net.Dialer
	return d.DialContext
}

func (s *Sender) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Sender) retryDelay() time.Duration {
	if s.RetryDelay >= 0 {
		return s.RetryDelay
	}
	return DefaultRetryDelay
}
