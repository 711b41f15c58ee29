// Command redigo-cli is a minimal command-line client for redigo-server.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/adred-codev/redigo/internal/client"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	host := "127.0.0.1"
	port := "6379"
	args := os.Args[1:]
	args = extractFlag(args, "--host", &host)
	args = extractFlag(args, "--port", &port)

	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cmd := args[0]
	rest := args[1:]

	c, err := client.Dial(net.JoinHostPort(host, port))
	if err != nil {
		fail(err)
	}
	defer c.Close()

	if err := run(c, cmd, rest); err != nil {
		fail(err)
	}
}

func run(c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "ping":
		var msg []byte
		if len(args) > 0 {
			msg = []byte(args[0])
		}
		out, err := c.Ping(msg)
		if err != nil {
			return err
		}
		fmt.Println(string(out))

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: redigo-cli get <key>")
		}
		v, ok, err := c.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(nil)")
			return nil
		}
		fmt.Println(string(v))

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: redigo-cli set <key> <value> [px-millis]")
		}
		if len(args) >= 3 {
			ms, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid expiry %q: %w", args[2], err)
			}
			if err := c.SetPX(args[0], []byte(args[1]), time.Duration(ms)*time.Millisecond); err != nil {
				return err
			}
		} else if err := c.Set(args[0], []byte(args[1])); err != nil {
			return err
		}
		fmt.Println("OK")

	case "del":
		if len(args) == 0 {
			return fmt.Errorf("usage: redigo-cli del <key> [key ...]")
		}
		if err := c.Del(args...); err != nil {
			return err
		}
		fmt.Println("OK")

	case "publish":
		if len(args) != 2 {
			return fmt.Errorf("usage: redigo-cli publish <channel> <message>")
		}
		n, err := c.Publish(args[0], []byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Println(n)

	case "subscribe":
		if len(args) == 0 {
			return fmt.Errorf("usage: redigo-cli subscribe <channel> [channel ...]")
		}
		sub, err := c.Subscribe(args...)
		if err != nil {
			return err
		}
		for {
			msg, ok, err := sub.NextMessage()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			fmt.Printf("%s: %s\n", msg.Channel, msg.Payload)
		}

	default:
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
	return nil
}

func extractFlag(args []string, name string, dest *string) []string {
	out := args[:0:0]
	for i := 0; i < len(args); i++ {
		if args[i] == name && i+1 < len(args) {
			*dest = args[i+1]
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: redigo-cli [--host H] [--port P] <ping|get|set|del|publish|subscribe> ...")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "redigo-cli:", err)
	os.Exit(1)
}
