package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lexcodex/godiagram/editor"
	"github.com/lexcodex/godiagram/persistence"
	"github.com/lexcodex/godiagram/server"
	"github.com/lexcodex/godiagram/session"
)

// Runtime wires the godiagram CLI, Bubble Tea UI and API server to one
// watcher session. It owns the log file, the journal and the channel.
type Runtime struct {
	Config  Config
	Logger  *log.Logger
	Journal persistence.Journal
	Channel *session.Channel
	Editor  *editor.Editor

	logFile io.Closer

	serverMu     sync.Mutex
	serverCancel context.CancelFunc
}

// Options adjust runtime construction.
type Options struct {
	// LogWriter receives log output in addition to the log file. Headless
	// commands pass os.Stderr; the TUI passes nothing so logs stay off the
	// alternate screen.
	LogWriter io.Writer
	// Dialer overrides the transport chosen from the watcher settings.
	Dialer session.Dialer
}

// New builds a runtime without connecting to the watcher.
func New(cfg Config, opts Options) (*Runtime, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	var out io.Writer = logFile
	if opts.LogWriter != nil {
		out = io.MultiWriter(opts.LogWriter, logFile)
	}
	logger := log.New(out, "godiagram ", log.LstdFlags|log.Lmicroseconds)

	journal, err := openJournal(cfg)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	if cfg.Session == "" {
		cfg.Session = strconv.FormatInt(time.Now().UnixNano(), 36)
	}

	endpoint := cfg.Watcher.Endpoint()
	dialer := opts.Dialer
	if dialer == nil {
		dialer = session.DialerFor(endpoint, out)
	}
	channel := session.NewChannel(endpoint,
		session.WithLogger(logger),
		session.WithJournal(journal, cfg.Session),
		session.WithDialer(dialer),
	)
	ed := editor.New(channel, editor.Options{
		Logger:           logger,
		TransitionWindow: cfg.TransitionWindow,
		MaxNotices:       cfg.MaxNotices,
	})
	logger.Printf("session %s for %s", cfg.Session, endpoint)
	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Journal: journal,
		Channel: channel,
		Editor:  ed,
		logFile: logFile,
	}, nil
}

func openJournal(cfg Config) (persistence.Journal, error) {
	if cfg.JournalPath == "" {
		return persistence.NewInMemoryJournal(cfg.JournalLimit), nil
	}
	journal, err := persistence.NewSQLiteJournal(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("journal init: %w", err)
	}
	return journal, nil
}

// Connect opens the watcher channel. A failed dial leaves the runtime usable
// so the UI can show the error and retry.
func (r *Runtime) Connect(ctx context.Context) error {
	if err := r.Editor.Open(ctx); err != nil {
		r.Logger.Printf("connect %s: %v", r.Config.Watcher.Endpoint(), err)
		return err
	}
	return nil
}

// StartServer launches the HTTP API in the background. The returned function
// stops it.
func (r *Runtime) StartServer(ctx context.Context, addr string) (func(context.Context) error, error) {
	r.serverMu.Lock()
	defer r.serverMu.Unlock()
	if r.serverCancel != nil {
		return nil, errors.New("server already running")
	}
	if addr == "" {
		addr = r.Config.ServerAddr
	}
	serverCtx, cancel := context.WithCancel(ctx)
	api := &server.APIServer{
		Editor:  r.Editor,
		Journal: r.Journal,
		Session: r.Config.Session,
		Logger:  r.Logger,
	}
	done := make(chan error, 1)
	go func() {
		done <- api.ServeContext(serverCtx, addr)
	}()
	r.serverCancel = cancel
	stop := func(shutdownCtx context.Context) error {
		r.serverMu.Lock()
		if r.serverCancel == nil {
			r.serverMu.Unlock()
			return nil
		}
		r.serverCancel()
		r.serverCancel = nil
		r.serverMu.Unlock()
		select {
		case err := <-done:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
	}
	return stop, nil
}

// Close disconnects the channel and releases the journal and log file.
func (r *Runtime) Close() error {
	var firstErr error
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil && !errors.Is(err, session.ErrNotConnected) {
			firstErr = err
		}
	}
	if r.Journal != nil {
		if err := r.Journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.logFile != nil {
		if err := r.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
