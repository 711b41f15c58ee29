package command

import "github.com/adred-codev/redigo/internal/resp"

// ErrorFrame builds a generic `-ERR <text>` response.
func ErrorFrame(text string) resp.Frame { return resp.Error("ERR " + text) }

// UnknownCommandFrame is the response for a syntactically valid frame
// whose command name redigo does not implement.
func UnknownCommandFrame(name string) resp.Frame {
	return resp.Error("ERR unknown command '" + name + "'")
}

// SubscribeAckFrame builds the `[ "subscribe", channel, count ]` frame
// sent once per channel a SUBSCRIBE command adds to a connection's
// subscribe-set.
func SubscribeAckFrame(channel string, count int) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("subscribe"))
	f.PushBulk([]byte(channel))
	f.PushInt(uint64(count))
	return f
}

// UnsubscribeAckFrame builds the `[ "unsubscribe", channel, count ]`
// frame sent once per channel an UNSUBSCRIBE command removes.
func UnsubscribeAckFrame(channel string, count int) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("unsubscribe"))
	f.PushBulk([]byte(channel))
	f.PushInt(uint64(count))
	return f
}

// MessageFrame builds the `[ "message", channel, payload ]` frame used to
// deliver a published message to a subscriber.
func MessageFrame(channel string, payload []byte) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("message"))
	f.PushBulk([]byte(channel))
	f.PushBulk(payload)
	return f
}
