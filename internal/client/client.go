// Package client implements a blocking RESP client for redigo, used by
// the command-line tools and by tests that exercise the server
// end-to-end.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/adred-codev/redigo/internal/resp"
)

// Client is a single connection to a redigo server. It is not safe for
// concurrent use from multiple goroutines, matching the "no pipelining"
// contract of the wire protocol.
type Client struct {
	conn *resp.Conn
}

// Dial connects to addr and returns a ready Client.
func Dial(addr string) (*Client, error) {
	nc, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	return &Client{conn: resp.NewConn(nc)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(req resp.Frame) (resp.Frame, error) {
	if err := c.conn.WriteFrame(req); err != nil {
		return resp.Frame{}, fmt.Errorf("client: write: %w", err)
	}
	f, err := c.conn.ReadFrame()
	if err != nil {
		return resp.Frame{}, fmt.Errorf("client: read: %w", err)
	}
	if f == nil {
		return resp.Frame{}, fmt.Errorf("client: read: %w", resp.ErrConnectionReset)
	}
	if f.Kind == resp.KindError {
		return resp.Frame{}, fmt.Errorf("client: server error: %s", f.Str)
	}
	return *f, nil
}

func request(name string, parts ...[]byte) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte(name))
	for _, p := range parts {
		f.PushBulk(p)
	}
	return f
}

// Ping sends PING, with or without a payload, and returns the server's
// response bytes (PONG, or the echoed payload).
func (c *Client) Ping(msg []byte) ([]byte, error) {
	req := request("ping")
	if msg != nil {
		req = request("ping", msg)
	}
	resF, err := c.call(req)
	if err != nil {
		return nil, err
	}
	switch resF.Kind {
	case resp.KindSimple:
		return []byte(resF.Str), nil
	case resp.KindBulk:
		return resF.Bulk, nil
	default:
		return nil, fmt.Errorf("client: ping: unexpected response %s", resF)
	}
}

// Get returns the value for key and whether it exists.
func (c *Client) Get(key string) ([]byte, bool, error) {
	resF, err := c.call(request("get", []byte(key)))
	if err != nil {
		return nil, false, err
	}
	switch resF.Kind {
	case resp.KindNull:
		return nil, false, nil
	case resp.KindBulk:
		return resF.Bulk, true, nil
	case resp.KindSimple:
		return []byte(resF.Str), true, nil
	default:
		return nil, false, fmt.Errorf("client: get: unexpected response %s", resF)
	}
}

// Set stores value under key with no expiration.
func (c *Client) Set(key string, value []byte) error {
	_, err := c.call(request("set", []byte(key), value))
	return err
}

// SetEX stores value under key, expiring after ttl (truncated to whole
// seconds, per the wire protocol's EX option).
func (c *Client) SetEX(key string, value []byte, ttl time.Duration) error {
	secs := []byte(fmt.Sprintf("%d", int64(ttl/time.Second)))
	_, err := c.call(request("set", []byte(key), value, []byte("EX"), secs))
	return err
}

// SetPX stores value under key, expiring after ttl (in whole
// milliseconds, per the wire protocol's PX option).
func (c *Client) SetPX(key string, value []byte, ttl time.Duration) error {
	ms := []byte(fmt.Sprintf("%d", ttl/time.Millisecond))
	_, err := c.call(request("set", []byte(key), value, []byte("PX"), ms))
	return err
}

// Del removes the given keys.
func (c *Client) Del(keys ...string) error {
	parts := make([][]byte, len(keys))
	for i, k := range keys {
		parts[i] = []byte(k)
	}
	_, err := c.call(request("del", parts...))
	return err
}

// Publish sends message to channel and returns the live subscriber
// count reported by the server.
func (c *Client) Publish(channel string, message []byte) (int64, error) {
	resF, err := c.call(request("publish", []byte(channel), message))
	if err != nil {
		return 0, err
	}
	if resF.Kind != resp.KindInteger {
		return 0, fmt.Errorf("client: publish: unexpected response %s", resF)
	}
	return int64(resF.Int), nil
}

// Subscribe sends SUBSCRIBE for the given channels, consumes their acks,
// and returns a Subscriber for receiving messages and managing further
// subscriptions. Once subscribed, the underlying connection only accepts
// pub/sub commands, matching the server's subscribe-mode contract.
func (c *Client) Subscribe(channels ...string) (*Subscriber, error) {
	s := &Subscriber{client: c}
	if err := s.Subscribe(channels...); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscriber is a Client that has entered subscribe mode.
type Subscriber struct {
	client     *Client
	subscribed []string
}

// Subscribed returns the channels currently subscribed to.
func (s *Subscriber) Subscribed() []string {
	out := make([]string, len(s.subscribed))
	copy(out, s.subscribed)
	return out
}

// Subscribe adds channels to the subscription, consuming one ack frame
// per channel.
func (s *Subscriber) Subscribe(channels ...string) error {
	parts := make([][]byte, len(channels))
	for i, ch := range channels {
		parts[i] = []byte(ch)
	}
	if err := s.client.conn.WriteFrame(request("subscribe", parts...)); err != nil {
		return fmt.Errorf("client: subscribe: write: %w", err)
	}
	for _, ch := range channels {
		if err := s.expectAck("subscribe", ch); err != nil {
			return err
		}
		s.subscribed = append(s.subscribed, ch)
	}
	return nil
}

// Unsubscribe removes channels from the subscription; an empty list
// removes every current subscription.
func (s *Subscriber) Unsubscribe(channels ...string) error {
	parts := make([][]byte, len(channels))
	for i, ch := range channels {
		parts[i] = []byte(ch)
	}
	if err := s.client.conn.WriteFrame(request("unsubscribe", parts...)); err != nil {
		return fmt.Errorf("client: unsubscribe: write: %w", err)
	}
	n := len(channels)
	if n == 0 {
		n = len(s.subscribed)
	}
	for i := 0; i < n; i++ {
		if err := s.expectAck("unsubscribe", ""); err != nil {
			return err
		}
	}
	if len(channels) == 0 {
		s.subscribed = nil
	} else {
		for _, ch := range channels {
			s.remove(ch)
		}
	}
	return nil
}

func (s *Subscriber) remove(channel string) {
	for i, ch := range s.subscribed {
		if ch == channel {
			s.subscribed = append(s.subscribed[:i], s.subscribed[i+1:]...)
			return
		}
	}
}

func (s *Subscriber) expectAck(kind, wantChannel string) error {
	f, err := s.client.conn.ReadFrame()
	if err != nil {
		return fmt.Errorf("client: %s ack: %w", kind, err)
	}
	if f == nil || f.Kind != resp.KindArray || len(f.Array) < 2 || f.Array[0].String() != kind {
		return fmt.Errorf("client: %s: unexpected ack frame", kind)
	}
	if wantChannel != "" && f.Array[1].String() != wantChannel {
		return fmt.Errorf("client: %s: ack for unexpected channel %q", kind, f.Array[1].String())
	}
	return nil
}

// Message is one delivery on a subscribed channel.
type Message struct {
	Channel string
	Payload []byte
}

// NextMessage blocks for the next pub/sub delivery. ok is false if the
// connection closed cleanly.
func (s *Subscriber) NextMessage() (Message, bool, error) {
	f, err := s.client.conn.ReadFrame()
	if err != nil {
		return Message{}, false, fmt.Errorf("client: next message: %w", err)
	}
	if f == nil {
		return Message{}, false, nil
	}
	if f.Kind != resp.KindArray || len(f.Array) != 3 || f.Array[0].String() != "message" {
		return Message{}, false, fmt.Errorf("client: next message: unexpected frame %s", *f)
	}
	return Message{Channel: f.Array[1].String(), Payload: f.Array[2].Bulk}, true, nil
}

// Ping sends PING while in subscribe mode and returns the server's
// response. The subscribe-mode contract answers PING directly rather than
// rejecting it as an unknown command.
func (s *Subscriber) Ping() ([]byte, error) {
	req := request("ping")
	if err := s.client.conn.WriteFrame(req); err != nil {
		return nil, fmt.Errorf("client: ping: write: %w", err)
	}
	f, err := s.client.conn.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("client: ping: read: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("client: ping: %w", resp.ErrConnectionReset)
	}
	switch f.Kind {
	case resp.KindSimple:
		return []byte(f.Str), nil
	case resp.KindBulk:
		return f.Bulk, nil
	default:
		return nil, fmt.Errorf("client: ping: unexpected response %s", *f)
	}
}

// Close closes the underlying connection.
func (s *Subscriber) Close() error { return s.client.Close() }
