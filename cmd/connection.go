// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/nongofit/pkg/ifit"
	"github.com/Thermoquad/nongofit/pkg/session"
)

// Connection carries whole fragments to and from the treadmill
type Connection interface {
	session.Source
	session.Sink
	io.Closer
}

// ErrConnectionClosed is returned once the underlying link has gone away
var ErrConnectionClosed = errors.New("connection closed")

// queuedConnection adapts a blocking reader goroutine to session.Source.
// The reader pushes into the queue and records why it stopped.
type queuedConnection struct {
	queue *session.Queue

	mu      sync.Mutex
	readErr error
}

// stop closes the queue, remembering err as the reason
func (q *queuedConnection) stop(err error) {
	q.mu.Lock()
	if q.readErr == nil {
		q.readErr = err
	}
	q.mu.Unlock()
	q.queue.Close()
}

func (q *queuedConnection) Next(ctx context.Context) (ifit.Fragment, error) {
	f, err := q.queue.Next(ctx)
	if errors.Is(err, io.EOF) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.readErr != nil && !errors.Is(q.readErr, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, q.readErr)
		}
	}
	return f, err
}

// SerialConnection talks to a UART bridge that relays BLE notifications as
// hex lines and writes hex lines back as BLE writes
type SerialConnection struct {
	queuedConnection
	port serial.Port
	wmu  sync.Mutex
}

func (s *SerialConnection) readLoop() {
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f, err := ifit.ParseFragment(line)
		if err != nil {
			log.Warn().Str("line", line).Msg("skipping non-hex line from bridge")
			continue
		}
		s.queue.Push(f)
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.stop(err)
}

func (s *SerialConnection) WriteFragment(f ifit.Fragment) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return ifit.WriteHex(s.port, f)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// WebSocketConnection carries one fragment per binary message
type WebSocketConnection struct {
	queuedConnection
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (w *WebSocketConnection) readLoop() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.stop(err)
			return
		}

		// Text frames carry bridge status, not fragments
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.queue.Push(data)
	}
}

func (w *WebSocketConnection) WriteFragment(f ifit.Fragment) error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, f)
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// FileConnection replays a capture. Outbound fragments are discarded.
type FileConnection struct {
	session.Source
	file *os.File
}

func (f *FileConnection) WriteFragment(ifit.Fragment) error {
	return nil
}

func (f *FileConnection) Close() error {
	return f.file.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	conn := &SerialConnection{queuedConnection: queuedConnection{queue: session.NewQueue(session.DefaultQueueSize)}, port: port}
	go conn.readLoop()
	return conn, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	wc := &WebSocketConnection{queuedConnection: queuedConnection{queue: session.NewQueue(session.DefaultQueueSize)}, conn: conn}
	go wc.readLoop()
	return wc, nil
}

// OpenFileConnection opens a capture for replay. Files ending in .cbor are
// read as CBOR captures, anything else as hex lines.
func OpenFileConnection(path string, realtime bool) (Connection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		src := session.NewCaptureSource(file)
		src.Realtime = realtime
		return &FileConnection{Source: src, file: file}, nil
	}
	return &FileConnection{Source: session.NewHexSource(file), file: file}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("NONGOFIT_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens the connection selected by the flags
func OpenConnection(ctx context.Context) (Connection, string, error) {
	if address := config.GetString("address"); address != "" {
		conn, err := OpenBluetoothConnection(ctx, address)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Bluetooth: %s", address), nil
	}

	if wsURL := config.GetString("url"); wsURL != "" {
		// WebSocket mode
		username := config.GetString("username")
		password := ""
		if username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, username, password, config.GetBool("no-ssl-verify"))
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName := config.GetString("port"); portName != "" {
		// Serial mode
		baudRate := config.GetInt("baud")
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	if path := config.GetString("input-file"); path != "" {
		conn, err := OpenFileConnection(path, config.GetBool("realtime"))
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("File: %s", path), nil
	}

	return nil, "", fmt.Errorf("one of --address, --url, --port or --input-file must be specified")
}
