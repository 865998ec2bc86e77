// Package serial provides a radio.Link over a serial connection to a LoRa
// radio module.
//
// This spec's wire format is one ASCII frame per radio transmission (spec
// §6), unlike the byte-stream RS232/Fletcher-16 framing this package
// originally carried. Since a serial line has no transmission boundary of
// its own, frames are newline-delimited on the wire — an explicit
// implementer's choice documented in DESIGN.md, not a requirement from
// spec.md or original_source (the original hardware target talks to the
// radio module directly, not a byte stream).
package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the default baud rate for the radio module link.
	DefaultBaudRate = 115200

	// readBufSize sizes the line scanner's buffer; wire frames are short
	// ASCII lines (spec §6) so this is generous headroom, not a tight fit.
	readBufSize = 1024
)

// Config holds the configuration for a serial radio.Link.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 115200.
	BaudRate int
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Link implements device/radio.Link over a serial connection. Frames
// received on the wire are queued for TakePacket; Send writes one
// newline-terminated frame per call.
type Link struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	port      serial.Port
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
	inbox     []packet
}

type packet struct {
	payload []byte
	rssi    int
}

// New creates a Link with the given configuration. The port is not opened
// until Start is called.
func New(cfg Config) *Link {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Link{cfg: cfg, log: cfg.Logger.WithGroup("serial")}
}

// Start opens the serial port and begins reading frames in the background.
// It returns once the port is open; incoming frames are queued for
// TakePacket asynchronously until ctx is cancelled or Stop is called.
func (l *Link) Start(ctx context.Context) error {
	if l.cfg.Port == "" {
		return errors.New("serial: Config.Port is required")
	}

	mode := &serial.Mode{BaudRate: l.cfg.BaudRate}
	port, err := serial.Open(l.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	l.mu.Lock()
	l.port = port
	l.connected = true
	l.done = make(chan struct{})
	l.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	go l.readLoop(readCtx, port)

	l.log.Info("connected to serial port", "port", l.cfg.Port, "baud", l.cfg.BaudRate)
	return nil
}

// Stop closes the serial port and waits for the read loop to exit.
func (l *Link) Stop() error {
	if l.cancel != nil {
		l.cancel()
	}

	l.mu.Lock()
	l.connected = false
	port := l.port
	l.port = nil
	done := l.done
	l.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}
	if done != nil {
		<-done
	}
	return err
}

// Send writes one frame terminated by a newline.
func (l *Link) Send(frame []byte) error {
	l.mu.Lock()
	port := l.port
	connected := l.connected
	l.mu.Unlock()

	if !connected || port == nil {
		return errors.New("serial: not connected")
	}

	_, err := port.Write(append(append([]byte(nil), frame...), '\n'))
	if err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}
	return nil
}

// IsPacketReady reports whether a frame is queued.
func (l *Link) IsPacketReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inbox) > 0
}

// TakePacket dequeues the oldest received frame. RSSI is not available
// over this transport (the radio module does not report it on its serial
// line), so it is always reported as 0.
func (l *Link) TakePacket() (payload []byte, rssi int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, 0, false
	}
	p := l.inbox[0]
	l.inbox = l.inbox[1:]
	return p.payload, p.rssi, true
}

func (l *Link) readLoop(ctx context.Context, port serial.Port) {
	defer close(l.done)

	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, readBufSize), readBufSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}

		l.mu.Lock()
		l.inbox = append(l.inbox, packet{payload: line, rssi: 0})
		l.mu.Unlock()
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		l.log.Error("serial read error", "error", err)
	}

	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
}
