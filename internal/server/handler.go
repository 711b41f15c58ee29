package server

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/adred-codev/redigo/internal/command"
	"github.com/adred-codev/redigo/internal/metrics"
	"github.com/adred-codev/redigo/internal/resp"
	"github.com/adred-codev/redigo/internal/shutdown"
	"github.com/adred-codev/redigo/internal/store"
)

// readResult is one outcome of a blocking ReadFrame call, passed from the
// dedicated reader goroutine to the handler's select loop. A nil frame
// with a nil error means the peer closed cleanly.
type readResult struct {
	frame *resp.Frame
	err   error
}

// messageEvent is a pub/sub delivery waiting to be written to the wire.
type messageEvent struct {
	channel string
	payload []byte
}

// subscription is one entry in a handler's subscribe-set.
type subscription struct {
	receiver *store.Receiver
	cancel   context.CancelFunc
}

// handler owns one TCP connection for its entire lifetime: normal-mode
// request/response, and, once a SUBSCRIBE command is applied, subscribe
// mode. It never returns from subscribe mode to normal mode.
type handler struct {
	conn     *resp.Conn
	store    *store.Store
	logger   zerolog.Logger
	observer *shutdown.Observer

	ctx    context.Context
	cancel context.CancelFunc

	subs     map[string]*subscription
	subOrder []string
	messages chan messageEvent
}

func newHandler(nc net.Conn, st *store.Store, logger zerolog.Logger, observer *shutdown.Observer) *handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &handler{
		conn:     resp.NewConn(nc),
		store:    st,
		logger:   logger.With().Str("remote_addr", nc.RemoteAddr().String()).Logger(),
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[string]*subscription),
		messages: make(chan messageEvent),
	}
}

// run drives the connection to completion: normal mode until a SUBSCRIBE
// command fires, then subscribe mode until the peer disconnects or
// shutdown is signaled.
func (h *handler) run() {
	defer h.cancel()
	defer h.conn.Close()
	defer h.closeSubscriptions()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	done := make(chan struct{})
	defer close(done)
	reads := make(chan readResult, 1)
	go h.readLoop(reads, done)

	for {
		if h.observer.IsShutdown() {
			return
		}
		select {
		case res := <-reads:
			if res.err != nil {
				h.logger.Debug().Err(res.err).Msg("connection closed")
				return
			}
			if res.frame == nil {
				return // clean peer close
			}
			entered, err := h.dispatch(*res.frame)
			if err != nil {
				h.logger.Debug().Err(err).Msg("protocol error, closing connection")
				return
			}
			if entered {
				h.subscribeLoop(reads)
				return
			}
		case <-h.observer.Recv():
			h.observer.MarkReceived()
			return
		}
	}
}

func (h *handler) readLoop(out chan<- readResult, done <-chan struct{}) {
	for {
		f, err := h.conn.ReadFrame()
		select {
		case out <- readResult{frame: f, err: err}:
		case <-done:
			return
		}
		if err != nil || f == nil {
			return
		}
	}
}

// dispatch applies one normal-mode command. entered is true when the
// command was SUBSCRIBE, signaling the caller to switch to subscribe
// mode; err is non-nil only for protocol-level failures that must
// terminate the connection.
func (h *handler) dispatch(f resp.Frame) (entered bool, err error) {
	cmd, err := command.Parse(f)
	if err != nil {
		return false, err
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()

	switch c := cmd.(type) {
	case command.Ping:
		return false, h.conn.WriteFrame(pingResponse(c.Msg))

	case command.Get:
		v, ok := h.store.Get(c.Key)
		if !ok {
			return false, h.conn.WriteFrame(resp.Null())
		}
		return false, h.conn.WriteFrame(resp.BulkBytes(v))

	case command.Set:
		h.store.Set(c.Key, c.Value, c.Expire.TTL(), c.HasTTL())
		return false, h.conn.WriteFrame(resp.Simple("OK"))

	case command.Del:
		h.store.Del(c.Keys...)
		return false, h.conn.WriteFrame(resp.Simple("OK"))

	case command.Publish:
		n := h.store.Publish(c.Channel, c.Message)
		metrics.PublishTotal.Inc()
		return false, h.conn.WriteFrame(resp.Integer(uint64(n)))

	case command.Subscribe:
		for _, ch := range c.Channels {
			if err := h.addSubscription(ch); err != nil {
				return true, err
			}
		}
		return true, nil

	case command.Unsubscribe:
		metrics.CommandErrorsTotal.WithLabelValues(cmd.Name()).Inc()
		return false, h.conn.WriteFrame(command.ErrorFrame("UNSUBSCRIBE is not supported outside of subscribe mode"))

	case command.Unknown:
		metrics.CommandErrorsTotal.WithLabelValues("unknown").Inc()
		return false, h.conn.WriteFrame(command.UnknownCommandFrame(c.CmdName))

	default:
		return false, h.conn.WriteFrame(command.UnknownCommandFrame(cmd.Name()))
	}
}

// subscribeLoop is entered exactly once per connection and never exits
// back to normal-mode dispatch. It multiplexes new client frames,
// pending pub/sub deliveries, and the shutdown signal.
func (h *handler) subscribeLoop(reads <-chan readResult) {
	for {
		if h.observer.IsShutdown() {
			return
		}
		select {
		case res := <-reads:
			if res.err != nil || res.frame == nil {
				return
			}
			if err := h.handleSubscribeFrame(*res.frame); err != nil {
				h.logger.Debug().Err(err).Msg("protocol error in subscribe mode, closing connection")
				return
			}
		case m := <-h.messages:
			if err := h.conn.WriteFrame(command.MessageFrame(m.channel, m.payload)); err != nil {
				return
			}
		case <-h.observer.Recv():
			h.observer.MarkReceived()
			return
		}
	}
}

func (h *handler) handleSubscribeFrame(f resp.Frame) error {
	cmd, err := command.Parse(f)
	if err != nil {
		return err
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()

	switch c := cmd.(type) {
	case command.Subscribe:
		for _, ch := range c.Channels {
			if err := h.addSubscription(ch); err != nil {
				return err
			}
		}
		return nil

	case command.Unsubscribe:
		channels := c.Channels
		if len(channels) == 0 {
			channels = append([]string(nil), h.subOrder...)
		}
		for _, ch := range channels {
			if err := h.removeSubscription(ch); err != nil {
				return err
			}
		}
		return nil

	case command.Ping:
		return h.conn.WriteFrame(pingResponse(c.Msg))

	default:
		metrics.CommandErrorsTotal.WithLabelValues(cmd.Name()).Inc()
		return h.conn.WriteFrame(command.UnknownCommandFrame(cmd.Name()))
	}
}

// addSubscription subscribes to channel if not already subscribed, spawns
// its delivery pump, and writes the subscribe-ack frame.
func (h *handler) addSubscription(channel string) error {
	if _, ok := h.subs[channel]; !ok {
		recv := h.store.Subscribe(channel)
		subCtx, cancel := context.WithCancel(h.ctx)
		h.subs[channel] = &subscription{receiver: recv, cancel: cancel}
		h.subOrder = append(h.subOrder, channel)
		go h.pump(subCtx, channel, recv)
	}
	return h.conn.WriteFrame(command.SubscribeAckFrame(channel, len(h.subOrder)))
}

// closeSubscriptions stops delivery for every subscription still held when
// the connection tears down, releasing each one's slot in its channel's
// live subscriber count. Called once, on the way out of run().
func (h *handler) closeSubscriptions() {
	for _, sub := range h.subs {
		sub.cancel()
		sub.receiver.Unsubscribe()
	}
}

// removeSubscription stops delivery for channel, drops it from the
// subscribe-set, and writes the unsubscribe-ack frame with the count of
// channels remaining afterward.
func (h *handler) removeSubscription(channel string) error {
	sub, ok := h.subs[channel]
	if !ok {
		return h.conn.WriteFrame(command.UnsubscribeAckFrame(channel, len(h.subOrder)))
	}
	sub.cancel()
	sub.receiver.Unsubscribe()
	delete(h.subs, channel)
	for i, ch := range h.subOrder {
		if ch == channel {
			h.subOrder = append(h.subOrder[:i], h.subOrder[i+1:]...)
			break
		}
	}
	return h.conn.WriteFrame(command.UnsubscribeAckFrame(channel, len(h.subOrder)))
}

// pump forwards messages from recv to h.messages until ctx is canceled.
// A lag signal is transient: it is counted and the pump keeps going.
func (h *handler) pump(ctx context.Context, channel string, recv *store.Receiver) {
	for {
		payload, lagged, ok := recv.Recv(ctx)
		if !ok {
			return
		}
		if lagged {
			metrics.SubscriberLagTotal.Inc()
			continue
		}
		select {
		case h.messages <- messageEvent{channel: channel, payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}

func pingResponse(msg []byte) resp.Frame {
	if msg == nil {
		return resp.Simple("PONG")
	}
	return resp.BulkBytes(msg)
}
