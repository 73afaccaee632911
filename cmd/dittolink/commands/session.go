package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/marmos91/dittolink/internal/logger"
	protocol "github.com/marmos91/dittolink/internal/protocol/link"
	"github.com/marmos91/dittolink/internal/protocol/link/handlers"
	"github.com/marmos91/dittolink/pkg/config"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/registry"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// session is one open container: the configured store, its registry and
// the dispatcher every command sends its requests through.
type session struct {
	cfg        *config.Config
	store      *object.Store
	registry   *registry.Registry
	dispatcher *protocol.Dispatcher
	metrics    *config.MetricsResult

	container string
	checksum  link.ChecksumScope
	client    string

	// writeMu admits one write epoch at a time
	writeMu sync.Mutex

	// gcMu keeps collections out while an object is provisioned but not
	// yet linked
	gcMu sync.RWMutex
}

// sessionOptions are the global flags that shape a session.
type sessionOptions struct {
	configFile string
	container  string
	storeType  string
	client     string

	// metrics enables metrics regardless of the configuration
	metrics bool
}

// openSession loads the configuration and opens the configured container,
// creating its root group on first use.
func openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.container != "" {
		cfg.Links.Container = opts.container
	}
	if opts.storeType != "" {
		cfg.Store.Type = opts.storeType
	}
	if opts.metrics {
		cfg.Metrics.Enabled = true
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	checksum, err := cfg.Links.Checksum()
	if err != nil {
		return nil, err
	}

	// Metrics first, so the store is instrumented when it is created
	metricsResult := config.InitializeMetrics(cfg)

	reg, store, err := config.InitializeRegistry(ctx, cfg, metricsResult.StoreMetrics)
	if err != nil {
		return nil, err
	}

	client := opts.client
	if client == "" {
		client = fmt.Sprintf("cli:%d", os.Getpid())
	}

	return &session{
		cfg:        cfg,
		store:      store,
		registry:   reg,
		dispatcher: config.CreateDispatcher(cfg, reg, metricsResult.LinkMetrics),
		metrics:    metricsResult,
		container:  cfg.Links.Container,
		checksum:   checksum,
		client:     client,
	}, nil
}

// Close releases the store.
func (s *session) Close() error {
	return s.store.Close()
}

// call dispatches one request and returns its response.
func (s *session) call(ctx context.Context, proc protocol.Procedure, body handlers.Request) handlers.Response {
	var reply *protocol.Reply
	s.dispatcher.Dispatch(ctx, &protocol.Request{
		Procedure:  proc,
		ClientAddr: s.client,
		Body:       body,
	}, func(r *protocol.Reply) { reply = r })
	return reply.Response
}

// readTx returns the snapshot reads observe: the newest committed epoch.
func (s *session) readTx(ctx context.Context) (object.TxID, error) {
	return s.store.LastCommitted(ctx)
}

// write runs fn in a fresh write epoch and commits it.
//
// The epoch is committed even when fn fails: handlers withdraw their own
// partial effects, and an epoch is never handed out twice.
func (s *session) write(ctx context.Context, fn func(tx object.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	last, err := s.store.LastCommitted(ctx)
	if err != nil {
		return err
	}
	tx := object.Tx{Write: last + 1, Read: last}

	fnErr := fn(tx)
	if err := s.store.Commit(ctx, tx.Write); err != nil {
		return errors.Join(fnErr, fmt.Errorf("commit %d: %w", tx.Write, err))
	}
	return fnErr
}

// StatusError reports a request answered with a non-OK status.
type StatusError struct {
	Procedure string
	Path      string
	Status    handlers.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Procedure, e.Path, e.Status)
}

// check turns a non-OK response into a StatusError.
func check(procedure, path string, resp handlers.Response) error {
	if status := resp.GetStatus(); status != handlers.StatusOK {
		return &StatusError{Procedure: procedure, Path: path, Status: status}
	}
	return nil
}

// at locates path from the container root.
func at(path string) handlers.Location {
	return handlers.Location{ID: object.RootID, Path: path}
}
