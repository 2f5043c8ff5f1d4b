package network

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/errors"
)

// State is the lifecycle stage of a TCP fork channel.
type State int32

const (
	// StateCreated is the state before the socket is bound.
	StateCreated State = iota
	// StateListening means the socket is bound and waiting for the worker.
	StateListening
	// StateAccepted means the worker connected.
	StateAccepted
	// StateStreaming means commands and events flow over the connection.
	StateStreaming
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateAccepted:
		return "accepted"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ForkChannel is the TCP transport's fork channel.
type ForkChannel struct {
	log     *slog.Logger
	id      string
	options *config.Options

	listener net.Listener
	port     int
	ctx      context.Context
	cancel   context.CancelFunc

	state          atomic.Int32
	listenerClosed atomic.Bool
	closeOnce      sync.Once

	mu        sync.Mutex // Protects the fields below
	created   bool
	closed    bool
	conn      net.Conn
	served    chan struct{}
	stopClose func() bool
}

// Compile-time verification that ForkChannel implements config.ForkChannel.
var _ config.ForkChannel = (*ForkChannel)(nil)

// NewForkChannel binds the listening socket and returns the channel.
// Returns BindError if the socket cannot be opened or the address is not on
// the loopback interface.
func NewForkChannel(ctx context.Context, options *config.Options) (*ForkChannel, error) {
	options = options.WithDefaults()
	id := ulid.Make().String()

	c := &ForkChannel{
		log:     options.Logger.With("component", "tcp_channel", "channel_id", id),
		id:      id,
		options: options,
	}

	if err := checkLoopback(options.ListenAddress); err != nil {
		c.log.Error("Refusing fork channel address", "address", options.ListenAddress, "error", err)

		return nil, &errors.BindError{Address: options.ListenAddress, Err: err}
	}

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", options.ListenAddress)
	if err != nil {
		c.log.Error("Failed to bind fork channel", "address", options.ListenAddress, "error", err)

		return nil, &errors.BindError{Address: options.ListenAddress, Err: err}
	}

	c.listener = ln
	c.port = ln.Addr().(*net.TCPAddr).Port
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.state.Store(int32(StateListening))

	c.mu.Lock()
	c.stopClose = context.AfterFunc(ctx, func() { _ = c.Close() })
	c.mu.Unlock()

	c.log.Debug("Fork channel listening", "address", ln.Addr().String())

	return c, nil
}

// ID returns the channel identifier used in logs.
func (c *ForkChannel) ID() string {
	return c.id
}

// checkLoopback accepts host:port addresses whose host is localhost or a
// loopback IP.
func checkLoopback(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	if host == "localhost" {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}

	return errors.ErrNonLoopbackAddress
}

// Port returns the bound port.
func (c *ForkChannel) Port() int {
	return c.port
}

// State returns the current lifecycle stage.
func (c *ForkChannel) State() State {
	return State(c.state.Load())
}

// ConnectionString returns "tcp://host:port" for the bound socket.
func (c *ForkChannel) ConnectionString() string {
	return "tcp://" + c.listener.Addr().String()
}

// CreateExecutableCommandline returns the executor for the single worker of
// this channel.
func (c *ForkChannel) CreateExecutableCommandline() (config.ExecutableCommandline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrChannelClosed
	}

	if c.created {
		return nil, errors.ErrCommandlineCreated
	}

	c.created = true

	return &ProcessExecutor{channel: c, log: c.log, options: c.options}, nil
}

// Close releases the listening socket and the worker connection and waits
// for the connection loops to stop. It's safe to call Close multiple times.
func (c *ForkChannel) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		served := c.served
		stopClose := c.stopClose
		c.mu.Unlock()

		c.state.Store(int32(StateClosed))
		stopClose()
		c.cancel()

		err = c.closeListener()

		if conn != nil {
			if cerr := conn.Close(); cerr != nil && !stderrors.Is(cerr, net.ErrClosed) {
				err = stderrors.Join(err, cerr)
			}
		}

		if served != nil {
			<-served
		}

		c.log.Debug("Fork channel closed")
	})

	return err
}

// closeListener closes the listening socket once. Closing unblocks a pending
// accept.
func (c *ForkChannel) closeListener() error {
	if !c.listenerClosed.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.listener.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}

	return nil
}

// startServing records that the connection loops are running. It returns
// false if the channel is already closed.
func (c *ForkChannel) startServing() (chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false
	}

	c.served = make(chan struct{})

	return c.served, true
}

// adopt records the accepted connection. It returns false if the channel
// was closed meanwhile; the caller then owns conn.
func (c *ForkChannel) adopt(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	c.conn = conn
	c.state.Store(int32(StateAccepted))

	return true
}
