package client

import "fmt"

// bufferedOp is one request queued onto a BufferedClient's owning
// goroutine, paired with a single-use reply channel standing in for
// Rust's oneshot channel.
type bufferedOp struct {
	kind  string // "get", "set", "del", "publish"
	key   string
	value []byte
	keys  []string
	reply chan bufferedResult
}

type bufferedResult struct {
	value []byte
	found bool
	count int64
	err   error
}

// BufferedClient serializes concurrent callers onto a single underlying
// Client connection, since the wire protocol forbids more than one
// in-flight request per connection. Requests are queued on a channel and
// applied one at a time by a dedicated goroutine; callers block only on
// their own reply.
type BufferedClient struct {
	ops chan bufferedOp
}

// Buffer spawns the owning goroutine for client and returns a handle
// that may be used concurrently from multiple goroutines.
func Buffer(c *Client) *BufferedClient {
	b := &BufferedClient{ops: make(chan bufferedOp, 32)}
	go b.run(c)
	return b
}

func (b *BufferedClient) run(c *Client) {
	for op := range b.ops {
		var res bufferedResult
		switch op.kind {
		case "get":
			res.value, res.found, res.err = c.Get(op.key)
		case "set":
			res.err = c.Set(op.key, op.value)
		case "del":
			res.err = c.Del(op.keys...)
		case "publish":
			res.count, res.err = c.Publish(op.key, op.value)
		default:
			res.err = fmt.Errorf("client: buffered: unknown op %q", op.kind)
		}
		op.reply <- res
	}
}

// Get queues a GET and blocks for its result.
func (b *BufferedClient) Get(key string) ([]byte, bool, error) {
	reply := make(chan bufferedResult, 1)
	b.ops <- bufferedOp{kind: "get", key: key, reply: reply}
	res := <-reply
	return res.value, res.found, res.err
}

// Set queues a SET and blocks for its result.
func (b *BufferedClient) Set(key string, value []byte) error {
	reply := make(chan bufferedResult, 1)
	b.ops <- bufferedOp{kind: "set", key: key, value: value, reply: reply}
	return (<-reply).err
}

// Del queues a DEL and blocks for its result.
func (b *BufferedClient) Del(keys ...string) error {
	reply := make(chan bufferedResult, 1)
	b.ops <- bufferedOp{kind: "del", keys: keys, reply: reply}
	return (<-reply).err
}

// Publish queues a PUBLISH and blocks for its result.
func (b *BufferedClient) Publish(channel string, message []byte) (int64, error) {
	reply := make(chan bufferedResult, 1)
	b.ops <- bufferedOp{kind: "publish", key: channel, value: message, reply: reply}
	res := <-reply
	return res.count, res.err
}

// Close stops the owning goroutine. No further calls may be made after
// Close; doing so panics, matching a send on a closed channel.
func (b *BufferedClient) Close() { close(b.ops) }
