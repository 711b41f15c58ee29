package command

import (
	"testing"
	"time"

	"github.com/adred-codev/redigo/internal/resp"
)

func frameOf(parts ...string) resp.Frame {
	f := resp.NewArray()
	for _, p := range parts {
		f.PushBulk([]byte(p))
	}
	return f
}

func TestParsePing(t *testing.T) {
	cmd, err := Parse(frameOf("PING"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, ok := cmd.(Ping)
	if !ok || p.Msg != nil {
		t.Fatalf("Parse(PING) = %#v, want Ping{Msg: nil}", cmd)
	}

	cmd, err = Parse(frameOf("PING", "hello"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, ok = cmd.(Ping)
	if !ok || string(p.Msg) != "hello" {
		t.Fatalf("Parse(PING hello) = %#v, want Msg=hello", cmd)
	}
}

func TestParseGet(t *testing.T) {
	cmd, err := Parse(frameOf("GET", "k"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g, ok := cmd.(Get)
	if !ok || g.Key != "k" {
		t.Fatalf("Parse(GET k) = %#v", cmd)
	}
}

func TestParseSetNoExpire(t *testing.T) {
	cmd, err := Parse(frameOf("SET", "k", "v"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, ok := cmd.(Set)
	if !ok || s.Key != "k" || string(s.Value) != "v" || s.HasTTL() {
		t.Fatalf("Parse(SET k v) = %#v", cmd)
	}
}

func TestParseSetWithEX(t *testing.T) {
	cmd, err := Parse(frameOf("SET", "k", "v", "EX", "10"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := cmd.(Set)
	if !s.HasTTL() || s.Expire.TTL() != 10*time.Second {
		t.Fatalf("Parse(SET k v EX 10) TTL = %v, want 10s", s.Expire.TTL())
	}
}

func TestParseSetWithPXZeroExpiresImmediately(t *testing.T) {
	cmd, err := Parse(frameOf("SET", "k", "v", "PX", "0"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := cmd.(Set)
	if !s.HasTTL() || s.Expire.TTL() != 0 {
		t.Fatalf("Parse(SET k v PX 0) = HasTTL=%v TTL=%v, want true, 0", s.HasTTL(), s.Expire.TTL())
	}
}

func TestParseSetUnknownOption(t *testing.T) {
	if _, err := Parse(frameOf("SET", "k", "v", "XX")); err == nil {
		t.Fatal("Parse(SET k v XX): want error, got nil")
	}
}

func TestParseDelMultipleKeys(t *testing.T) {
	cmd, err := Parse(frameOf("DEL", "a", "b", "c"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d := cmd.(Del)
	if len(d.Keys) != 3 {
		t.Fatalf("Parse(DEL a b c).Keys = %v", d.Keys)
	}
}

func TestParsePublish(t *testing.T) {
	cmd, err := Parse(frameOf("PUBLISH", "chat", "hi"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := cmd.(Publish)
	if p.Channel != "chat" || string(p.Message) != "hi" {
		t.Fatalf("Parse(PUBLISH chat hi) = %#v", p)
	}
}

func TestParseSubscribeMultiple(t *testing.T) {
	cmd, err := Parse(frameOf("SUBSCRIBE", "a", "b"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := cmd.(Subscribe)
	if len(s.Channels) != 2 || s.Channels[0] != "a" || s.Channels[1] != "b" {
		t.Fatalf("Parse(SUBSCRIBE a b) = %#v", s)
	}
}

func TestParseUnsubscribeEmpty(t *testing.T) {
	cmd, err := Parse(frameOf("UNSUBSCRIBE"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	u := cmd.(Unsubscribe)
	if len(u.Channels) != 0 {
		t.Fatalf("Parse(UNSUBSCRIBE) = %#v, want empty Channels", u)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	cmd, err := Parse(frameOf("FLUSHALL"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	u, ok := cmd.(Unknown)
	if !ok || u.CmdName != "flushall" {
		t.Fatalf("Parse(FLUSHALL) = %#v, want Unknown{flushall}", cmd)
	}
}

func TestParseCaseInsensitiveCommandName(t *testing.T) {
	cmd, err := Parse(frameOf("GeT", "k"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := cmd.(Get); !ok {
		t.Fatalf("Parse(GeT k) = %#v, want Get", cmd)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	if _, err := Parse(frameOf("GET", "k", "extra")); err == nil {
		t.Fatal("Parse(GET k extra): want error, got nil")
	}
}

func TestFramesBuilders(t *testing.T) {
	if got := UnknownCommandFrame("xyz").Str; got != "ERR unknown command 'xyz'" {
		t.Errorf("UnknownCommandFrame = %q", got)
	}
	ack := SubscribeAckFrame("chat", 1)
	if len(ack.Array) != 3 || ack.Array[2].Int != 1 {
		t.Errorf("SubscribeAckFrame = %v", ack)
	}
	msg := MessageFrame("chat", []byte("hi"))
	if len(msg.Array) != 3 || string(msg.Array[2].Bulk) != "hi" {
		t.Errorf("MessageFrame = %v", msg)
	}
}
