package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/redigo/internal/client"
	"github.com/adred-codev/redigo/internal/resp"
	"github.com/adred-codev/redigo/internal/store"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// startServer launches a Server on an ephemeral port and returns its
// address. It registers a cleanup that cancels the server and waits for
// Run to return.
func startServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve a port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	st := store.New()
	srv := New(Config{Addr: addr, MaxConnections: 16}, st, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down within 2s")
		}
		st.Shutdown()
	})

	// Poll until the listener accepts connections; Run's net.ListenConfig
	// call happens asynchronously relative to this goroutine.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			c.Close()
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server never started listening on %s", addr)
	return ""
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Dial(addr)
	if err != nil {
		t.Fatalf("client.Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPingWithAndWithoutArgument(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	out, err := c.Ping(nil)
	if err != nil || string(out) != "PONG" {
		t.Fatalf("Ping(nil) = %q, %v, want PONG", out, err)
	}

	out, err = c.Ping([]byte("hello"))
	if err != nil || string(out) != "hello" {
		t.Fatalf("Ping(hello) = %q, %v, want hello", out, err)
	}
}

func TestSetThenGet(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	if err := c.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := c.Get("k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get(k) = %q, %v, %v, want v, true, nil", v, ok, err)
	}
}

func TestGetMissingKey(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	_, ok, err := c.Get("does-not-exist")
	if err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v, err=%v, want false, nil", ok, err)
	}
}

func TestSetWithPXExpires(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	if err := c.SetPX("k", []byte("v"), 30*time.Millisecond); err != nil {
		t.Fatalf("SetPX: %v", err)
	}
	if _, ok, _ := c.Get("k"); !ok {
		t.Fatal("Get(k) immediately after SetPX: want ok=true")
	}
	time.Sleep(100 * time.Millisecond)
	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("Get(k) after PX elapsed: want ok=false")
	}
}

func TestDelReturnsOK(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	c.Set("k", []byte("v"))
	if err := c.Del("k", "missing-too"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("Get(k) after Del: want ok=false")
	}
}

func TestPublishSubscribeEndToEnd(t *testing.T) {
	addr := startServer(t)
	publisher := dial(t, addr)

	subC, err := client.Dial(addr)
	if err != nil {
		t.Fatalf("client.Dial: %v", err)
	}
	t.Cleanup(func() { subC.Close() })

	sub, err := subC.Subscribe("chat")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Give the subscription time to register before publishing.
	time.Sleep(50 * time.Millisecond)

	n, err := publisher.Publish("chat", []byte("hello"))
	if err != nil || n != 1 {
		t.Fatalf("Publish(chat) = %d, %v, want 1, nil", n, err)
	}

	msgCh := make(chan client.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		msg, ok, err := sub.NextMessage()
		if err != nil {
			errCh <- err
			return
		}
		if !ok {
			errCh <- io.ErrUnexpectedEOF
			return
		}
		msgCh <- msg
	}()

	select {
	case msg := <-msgCh:
		if msg.Channel != "chat" || string(msg.Payload) != "hello" {
			t.Fatalf("NextMessage() = %+v, want chat/hello", msg)
		}
	case err := <-errCh:
		t.Fatalf("NextMessage(): %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("NextMessage() never delivered the published message")
	}
}

func TestUnsubscribeAllDecrementsCount(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	sub, err := c.Subscribe("a", "b", "c")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if len(sub.Subscribed()) != 3 {
		t.Fatalf("Subscribed() = %v, want 3 channels", sub.Subscribed())
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe(all): %v", err)
	}
	if len(sub.Subscribed()) != 0 {
		t.Fatalf("Subscribed() after Unsubscribe(all) = %v, want empty", sub.Subscribed())
	}
}

func TestUnknownCommandInSubscribeModeKeepsConnectionOpen(t *testing.T) {
	addr := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("net.Dial: %v", err)
	}
	defer nc.Close()
	conn := resp.NewConn(nc)

	sub := resp.NewArray()
	sub.PushBulk([]byte("SUBSCRIBE"))
	sub.PushBulk([]byte("chat"))
	if err := conn.WriteFrame(sub); err != nil {
		t.Fatalf("write SUBSCRIBE: %v", err)
	}
	if _, err := conn.ReadFrame(); err != nil {
		t.Fatalf("read SUBSCRIBE ack: %v", err)
	}

	// A command other than SUBSCRIBE/UNSUBSCRIBE/PING is rejected while
	// subscribed, but the connection itself must stay usable.
	bogus := resp.NewArray()
	bogus.PushBulk([]byte("FOOBAR"))
	if err := conn.WriteFrame(bogus); err != nil {
		t.Fatalf("write FOOBAR: %v", err)
	}
	reply, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("read FOOBAR reply: %v", err)
	}
	if reply.Kind != resp.KindError || reply.Str != "ERR unknown command 'foobar'" {
		t.Fatalf("FOOBAR reply = %+v, want Error ERR unknown command 'foobar'", reply)
	}

	ping := resp.NewArray()
	ping.PushBulk([]byte("PING"))
	if err := conn.WriteFrame(ping); err != nil {
		t.Fatalf("write PING: %v", err)
	}
	pong, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("read PING reply: %v", err)
	}
	if pong.Kind != resp.KindSimple || pong.Str != "PONG" {
		t.Fatalf("PING reply after unknown command = %+v, want Simple PONG", pong)
	}
}
