// Package command parses decoded RESP frames into typed command values
// and builds their response/ack frames.
package command

import (
	"errors"
	"strings"

	"github.com/adred-codev/redigo/internal/resp"
)

// Command is the set of command variants a connection handler can apply.
type Command interface {
	// Name returns the lowercase command name, used in error messages and
	// logging.
	Name() string
}

type Ping struct{ Msg []byte } // nil when no argument was given

type Get struct{ Key string }

type Set struct {
	Key    string
	Value  []byte
	Expire *ExpireOption // nil when no EX/PX option was given
}

// ExpireOption carries a SET expiration in whichever unit the client used;
// TTL normalizes both to a single duration.
type ExpireOption struct {
	Seconds      uint64
	Milliseconds uint64
	IsSeconds    bool
}

type Del struct{ Keys []string }

type Publish struct {
	Channel string
	Message []byte
}

type Subscribe struct{ Channels []string }

type Unsubscribe struct{ Channels []string }

// Unknown represents a syntactically valid command frame whose name is not
// one this server implements.
type Unknown struct{ CmdName string }

func (Ping) Name() string        { return "ping" }
func (Get) Name() string         { return "get" }
func (Set) Name() string         { return "set" }
func (Del) Name() string         { return "del" }
func (Publish) Name() string     { return "publish" }
func (Subscribe) Name() string   { return "subscribe" }
func (Unsubscribe) Name() string { return "unsubscribe" }
func (u Unknown) Name() string   { return u.CmdName }

// Parse decodes an Array frame into a Command. An unrecognized command
// name is not itself an error: it yields Unknown so the caller can reply
// with "ERR unknown command" and keep the connection open. Any other
// parse failure (wrong frame shape, bad option, non-UTF8 string, trailing
// data) is a protocol-level error the caller must treat as fatal to the
// connection.
func Parse(frame resp.Frame) (Command, error) {
	p, err := resp.NewParser(frame)
	if err != nil {
		return nil, err
	}
	name, err := p.NextString()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)

	var cmd Command
	switch lower {
	case "ping":
		cmd, err = parsePing(p)
	case "get":
		cmd, err = parseGet(p)
	case "set":
		cmd, err = parseSet(p)
	case "del":
		cmd, err = parseDel(p)
	case "publish":
		cmd, err = parsePublish(p)
	case "subscribe":
		cmd, err = parseSubscribe(p)
	case "unsubscribe":
		cmd, err = parseUnsubscribe(p)
	default:
		return Unknown{CmdName: lower}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := p.Finish(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parsePing(p *resp.Parser) (Command, error) {
	msg, err := p.NextBytes()
	if errors.Is(err, resp.ErrEndOfStream) {
		return Ping{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Ping{Msg: msg}, nil
}

func parseGet(p *resp.Parser) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return nil, err
	}
	return Get{Key: key}, nil
}

func parseDel(p *resp.Parser) (Command, error) {
	first, err := p.NextString()
	if err != nil {
		return nil, err
	}
	keys := []string{first}
	for {
		k, err := p.NextString()
		if errors.Is(err, resp.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return Del{Keys: keys}, nil
}

func parsePublish(p *resp.Parser) (Command, error) {
	channel, err := p.NextString()
	if err != nil {
		return nil, err
	}
	msg, err := p.NextBytes()
	if err != nil {
		return nil, err
	}
	return Publish{Channel: channel, Message: msg}, nil
}

func parseSubscribe(p *resp.Parser) (Command, error) {
	first, err := p.NextString()
	if err != nil {
		return nil, err
	}
	channels := []string{first}
	for {
		c, err := p.NextString()
		if errors.Is(err, resp.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return Subscribe{Channels: channels}, nil
}

func parseUnsubscribe(p *resp.Parser) (Command, error) {
	var channels []string
	for {
		c, err := p.NextString()
		if errors.Is(err, resp.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return Unsubscribe{Channels: channels}, nil
}
