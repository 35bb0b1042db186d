package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
)

// maxMessageSize bounds a single inbound message.
const maxMessageSize = 512 * 1024

// Endpoint locates the watcher.
type Endpoint struct {
	Host         string
	Port         int
	Path         string
	VersionToken string
	// Command, when set, spawns the watcher and talks to it over stdio
	// instead of dialing Host:Port.
	Command     []string
	Dir         string
	DialTimeout time.Duration
}

// DefaultEndpoint returns the watcher's default local address.
func DefaultEndpoint() Endpoint {
	return Endpoint{
		Host:        "localhost",
		Port:        5874,
		Path:        "/ws",
		DialTimeout: 5 * time.Second,
	}
}

// URL returns the websocket URL, carrying the version token as lastMod.
func (e Endpoint) URL() string {
	path := e.Path
	if path == "" {
		path = "/ws"
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:   path,
	}
	if e.VersionToken != "" {
		u.RawQuery = url.Values{"lastMod": []string{e.VersionToken}}.Encode()
	}
	return u.String()
}

func (e Endpoint) String() string {
	if len(e.Command) > 0 {
		return "stdio:" + e.Command[0]
	}
	return e.URL()
}

// Dialer opens an object stream to the watcher.
type Dialer interface {
	Dial(ctx context.Context) (jsonrpc2.ObjectStream, error)
}

// DialerFor picks the transport the endpoint describes.
func DialerFor(e Endpoint, stderr io.Writer) Dialer {
	if len(e.Command) > 0 {
		return &ProcessDialer{Command: e.Command, Dir: e.Dir, Stderr: stderr}
	}
	return &WebSocketDialer{URL: e.URL()}
}

// WebSocketDialer connects to a running watcher over a websocket.
type WebSocketDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context) (jsonrpc2.ObjectStream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return wsstream.NewObjectStream(conn), nil
}

// ProcessDialer spawns the watcher and exchanges framed JSON over its
// stdin/stdout. Closing the stream kills the process.
type ProcessDialer struct {
	Command []string
	Dir     string
	Stderr  io.Writer
}

func (d *ProcessDialer) Dial(ctx context.Context) (jsonrpc2.ObjectStream, error) {
	if len(d.Command) == 0 {
		return nil, errors.New("watcher command required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(d.Command[0], d.Command[1:]...)
	cmd.Dir = d.Dir
	if d.Stderr != nil {
		cmd.Stderr = d.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	rwc := &processReadWriteCloser{reader: stdout, writer: stdin, cmd: cmd}
	return jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), nil
}

type processReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
	cmd    *exec.Cmd
	once   sync.Once
}

func (p *processReadWriteCloser) Read(b []byte) (int, error)  { return p.reader.Read(b) }
func (p *processReadWriteCloser) Write(b []byte) (int, error) { return p.writer.Write(b) }
func (p *processReadWriteCloser) Close() error {
	p.once.Do(func() {
		_ = p.writer.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
			_ = p.cmd.Wait()
		}
	})
	return nil
}
