// Package radio reads device frames from a radio co-processor attached to a
// serial port. Frames are HDLC framed with a CRC-16 check sequence.
package radio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"thread-go-home/internal/wire"
)

// Config holds serial port settings.
type Config struct {
	Port string
	Baud int
}

const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("radio: closed")

// Radio owns the serial port and its read loop.
type Radio struct {
	open    func() (io.ReadWriteCloser, error)
	handler Handler
	logger  *slog.Logger

	// mu guards port and closed; writeMu serializes frames on the wire.
	mu      sync.Mutex
	port    io.ReadWriteCloser
	closed  bool
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open opens the serial port and starts delivering frames to h.
func Open(cfg Config, h Handler, logger *slog.Logger) (*Radio, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	opener := func() (io.ReadWriteCloser, error) {
		port, err := serial.Open(cfg.Port, mode)
		if err != nil {
			return nil, fmt.Errorf("radio: open %s: %w", cfg.Port, err)
		}
		// USB CDC ACM adapters want DTR/RTS before they send anything.
		_ = port.SetDTR(true)
		_ = port.SetRTS(true)
		return port, nil
	}
	return newRadio(opener, h, logger.With("component", "radio", "port", cfg.Port))
}

func newRadio(open func() (io.ReadWriteCloser, error), h Handler, logger *slog.Logger) (*Radio, error) {
	port, err := open()
	if err != nil {
		return nil, err
	}
	r := &Radio{
		open:    open,
		handler: h,
		logger:  logger,
		port:    port,
		done:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.readLoop(port)
	return r, nil
}

func (r *Radio) readLoop(port io.ReadWriteCloser) {
	defer r.wg.Done()

	backoff := minBackoff
	reader := bufio.NewReader(port)
	for {
		raw, err := readHDLCFrame(reader)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if err != io.EOF {
				r.logger.Error("radio read error", "err", err)
			} else {
				r.logger.Warn("radio port closed, reconnecting")
			}
			port.Close()
			var ok bool
			if port, ok = r.reconnect(&backoff); !ok {
				return
			}
			reader = bufio.NewReader(port)
			continue
		}
		backoff = minBackoff
		r.handleRaw(raw)
	}
}

// reconnect reopens the port, doubling the delay between attempts. It
// returns false once Close has been called.
func (r *Radio) reconnect(backoff *time.Duration) (io.ReadWriteCloser, bool) {
	for attempt := 1; ; attempt++ {
		select {
		case <-time.After(*backoff):
		case <-r.done:
			return nil, false
		}
		*backoff = min(*backoff*2, maxBackoff)

		port, err := r.open()
		if err != nil {
			r.logger.Debug("waiting for radio", "attempt", attempt, "err", err)
			continue
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			port.Close()
			return nil, false
		}
		r.port = port
		r.mu.Unlock()
		r.logger.Info("radio reconnected", "attempts", attempt)
		return port, true
	}
}

func (r *Radio) handleRaw(raw []byte) {
	data, err := hdlcDecode(raw)
	if err != nil {
		r.logger.Warn("radio frame dropped", "err", err, "len", len(raw))
		return
	}
	f, err := ParseFrame(data)
	if err != nil {
		r.logger.Warn("radio frame dropped", "err", err)
		return
	}
	r.logger.Debug("radio frame received", "kind", f.Kind, "serial", fmt.Sprintf("%016X", f.Serial), "len", len(f.Payload))
	if err := Dispatch(r.handler, f); err != nil {
		r.logger.Warn("radio frame rejected", "kind", f.Kind, "err", err)
	}
}

// WriteSetting sends a setting change to the device over the radio.
func (r *Radio) WriteSetting(ctx context.Context, serial uint64, s wire.Setting) error {
	f := Frame{Kind: KindSettingSet, Serial: serial, Payload: s.Encode()}
	return r.write(ctx, hdlcEncode(f.Bytes()))
}

func (r *Radio) write(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	port, closed := r.port, r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if _, err := port.Write(raw); err != nil {
		return fmt.Errorf("radio write: %w", err)
	}
	return nil
}

// Close stops the read loop and closes the port.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.closeOnce.Do(func() { close(r.done) })
	err := r.port.Close()
	r.mu.Unlock()

	r.wg.Wait()
	return err
}
