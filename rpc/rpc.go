// Package rpc carries the event bus and the backend calls between processes,
// using net/rpc over HTTP. The engine process serves a Bridge; control
// surfaces Dial it.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/bus"
)

// DefaultPort is the port the engine listens on if none is given.
const DefaultPort = "31337"

// subscriberBuffer is how many engine messages wait for a subscriber before
// new ones are dropped.
const subscriberBuffer = 1024

// DefaultExpiry is how long a subscriber may go without polling before it is
// dropped, if Bridge.Expiry is not set.
const DefaultExpiry = 30 * time.Second

// pollWait is how long Client.Subscribe lets one poll wait for messages.
const pollWait = 500 * time.Millisecond

type (
	// Bridge connects the RPC service to the engine.
	Bridge struct {
		// Deliver hands a message from a control surface to the engine. It
		// returns false if the message could not be queued.
		Deliver func(bus.Message) bool
		// Backend serves the backend calls. If nil, calls fail.
		Backend *backend.Mux
		// OnSubscribe is called after a control surface subscribes, e.g. to
		// announce the rack to it. It may be nil.
		OnSubscribe func()
		// Expiry is how long a subscriber may go without polling before it is
		// dropped. 0 means DefaultExpiry.
		Expiry time.Duration
		Logger *slog.Logger

		mu   sync.Mutex
		subs map[int]*subscriber
		next int
	}

	subscriber struct {
		c       chan bus.Message
		seen    time.Time // end of the last poll
		polling int
	}

	// Server is a running RPC server.
	Server struct {
		listener net.Listener
		http     *http.Server
		done     chan struct{}
	}

	// Client is a connection to a Server. It implements backend.Caller.
	Client struct {
		// Logger reports the messages dropped by Forward. If nil,
		// slog.Default() is used.
		Logger *slog.Logger

		rpc *rpc.Client
	}

	CallArgs struct {
		Command backend.Command
		Args    []byte
	}

	CallReply struct {
		Result []byte
	}

	PollArgs struct {
		Subscriber int
		Wait       time.Duration
	}

	PollReply struct {
		Messages []bus.Message
	}

	// Rack is the RPC service. Its methods follow the net/rpc conventions and
	// are not meant to be called directly.
	Rack struct {
		bridge *Bridge
	}
)

// ErrQueueFull is returned by Client.Send when the engine queue is full and
// the message was dropped.
var ErrQueueFull = errors.New("engine queue full")

const serviceName = "Rack"

// Publish sends a message from the engine to every subscriber. A subscriber
// that is not keeping up loses the message; one that has stopped polling is
// dropped.
func (b *Bridge) Publish(msg bus.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiry := b.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	now := time.Now()
	for id, sub := range b.subs {
		if sub.polling == 0 && now.Sub(sub.seen) > expiry {
			delete(b.subs, id)
			b.logger().Info("subscriber expired", "subscriber", id)
			continue
		}
		if !bus.TrySend(sub.c, msg) {
			b.logger().Warn("subscriber queue full, message dropped", "subscriber", id, "topic", msg.Topic)
		}
	}
}

// Subscribers returns the number of subscribed control surfaces.
func (b *Bridge) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *Bridge) subscribe() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]*subscriber{}
	}
	b.next++
	b.subs[b.next] = &subscriber{c: make(chan bus.Message, subscriberBuffer), seen: time.Now()}
	return b.next
}

// startPoll marks a subscriber as polling, so it does not expire while
// waiting for messages.
func (b *Bridge) startPoll(id int) (chan bus.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return nil, false
	}
	sub.polling++
	return sub.c, true
}

func (b *Bridge) endPoll(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		sub.polling--
		sub.seen = time.Now()
	}
}

func (b *Bridge) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Send replies false if the engine queue is full; the message is then
// dropped.
func (r *Rack) Send(msg bus.Message, reply *bool) error {
	*reply = r.bridge.Deliver != nil && r.bridge.Deliver(msg)
	return nil
}

func (r *Rack) Call(args CallArgs, reply *CallReply) error {
	if r.bridge.Backend == nil {
		return fmt.Errorf("%q: %w", args.Command, backend.ErrUnknownCommand)
	}
	result, err := r.bridge.Backend.Serve(context.Background(), args.Command, args.Args)
	if err != nil {
		return err
	}
	reply.Result = result
	return nil
}

func (r *Rack) Subscribe(_ bool, reply *int) error {
	*reply = r.bridge.subscribe()
	if r.bridge.OnSubscribe != nil {
		r.bridge.OnSubscribe()
	}
	return nil
}

func (r *Rack) Unsubscribe(id int, reply *bool) error {
	r.bridge.unsubscribe(id)
	*reply = true
	return nil
}

// Poll waits up to args.Wait for messages of a subscriber and returns all
// that are waiting.
func (r *Rack) Poll(args PollArgs, reply *PollReply) error {
	c, ok := r.bridge.startPoll(args.Subscriber)
	if !ok {
		return fmt.Errorf("unknown subscriber %d", args.Subscriber)
	}
	defer r.bridge.endPoll(args.Subscriber)
	msg, ok := bus.TimeoutReceive(c, args.Wait)
	if !ok {
		return nil
	}
	reply.Messages = append(reply.Messages, msg)
loop:
	for {
		select {
		case msg := <-c:
			reply.Messages = append(reply.Messages, msg)
		default:
			break loop
		}
	}
	return nil
}

// Serve starts serving bridge on addr, e.g. ":31337". Use Server.Addr to find
// the port if addr has port 0.
func Serve(addr string, bridge *Bridge) (*Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(serviceName, &Rack{bridge: bridge}); err != nil {
		return nil, fmt.Errorf("rpc.Register failed: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %w", err)
	}
	s := &Server{listener: l, http: &http.Server{Handler: mux}, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			bridge.logger().Error("rpc server stopped", "err", err)
		}
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close stops the server. Connected clients see their calls fail.
func (s *Server) Close() error {
	err := s.http.Close()
	<-s.done
	return err
}

// Dial connects to a server. An address without a port uses DefaultPort.
func Dial(addr string) (*Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	c, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpc.DialHTTP failed: %w", err)
	}
	return &Client{rpc: c}, nil
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	call := c.rpc.Go(serviceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		return call.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers one message to the engine. If the engine queue is full, the
// message is dropped and ErrQueueFull returned.
func (c *Client) Send(ctx context.Context, msg bus.Message) error {
	var ok bool
	if err := c.call(ctx, "Send", msg, &ok); err != nil {
		return err
	}
	if !ok {
		return ErrQueueFull
	}
	return nil
}

// Call implements backend.Caller.
func (c *Client) Call(ctx context.Context, cmd backend.Command, args, reply any) error {
	raw, err := backend.Encode(args)
	if err != nil {
		return err
	}
	var r CallReply
	if err := c.call(ctx, "Call", CallArgs{Command: cmd, Args: raw}, &r); err != nil {
		return err
	}
	return backend.Decode(r.Result, reply)
}

// Forward sends the messages of ch to the engine until ch is closed, ctx is
// done or the connection fails. Messages the engine has no room for are
// dropped.
func (c *Client) Forward(ctx context.Context, ch <-chan bus.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			err := c.Send(ctx, msg)
			if errors.Is(err, ErrQueueFull) {
				c.logger().Warn("engine queue full, message dropped", "topic", msg.Topic)
				continue
			}
			if err != nil {
				return fmt.Errorf("sending %s: %w", msg.Topic, err)
			}
		}
	}
}

// Subscribe passes the engine messages to fn until ctx is done or the
// connection fails. fn is called from the goroutine calling Subscribe.
func (c *Client) Subscribe(ctx context.Context, fn func(bus.Message)) error {
	id, err := c.subscribe(ctx)
	if err != nil {
		return err
	}
	return c.poll(ctx, id, fn)
}

func (c *Client) subscribe(ctx context.Context) (int, error) {
	var id int
	err := c.call(ctx, "Subscribe", true, &id)
	return id, err
}

// poll passes the messages of subscription id to fn and unsubscribes when
// done.
func (c *Client) poll(ctx context.Context, id int, fn func(bus.Message)) error {
	defer func() {
		var ok bool
		c.call(context.Background(), "Unsubscribe", id, &ok)
	}()
	for ctx.Err() == nil {
		var reply PollReply
		if err := c.call(ctx, "Poll", PollArgs{Subscriber: id, Wait: pollWait}, &reply); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		for _, msg := range reply.Messages {
			fn(msg)
		}
	}
	return ctx.Err()
}

// Attach connects a broker to the engine: messages from ToEngine are sent
// and engine messages are posted to ToModel. The subscription is in place
// before anything is sent, so no reply is missed. It returns when ctx is done
// or the connection fails.
func (c *Client) Attach(ctx context.Context, b *bus.Broker) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	id, err := c.subscribe(ctx)
	if err != nil {
		return err
	}
	errs := make(chan error, 2)
	go func() { errs <- c.Forward(ctx, b.ToEngine) }()
	go func() {
		errs <- c.poll(ctx, id, func(msg bus.Message) {
			select {
			case b.ToModel <- bus.MsgToModel{Message: msg}:
			case <-ctx.Done():
			}
		})
	}()
	err = <-errs
	cancel()
	<-errs
	return err
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) Close() error { return c.rpc.Close() }
