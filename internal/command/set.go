package command

import (
	"errors"
	"strings"
	"time"

	"github.com/adred-codev/redigo/internal/resp"
)

func parseSet(p *resp.Parser) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return nil, err
	}
	value, err := p.NextBytes()
	if err != nil {
		return nil, err
	}

	var expire *ExpireOption
	opt, err := p.NextString()
	switch {
	case errors.Is(err, resp.ErrEndOfStream):
		// No expiration option supplied; this is the common case.
	case err != nil:
		return nil, err
	case strings.EqualFold(opt, "EX"):
		secs, err := p.NextInt()
		if err != nil {
			return nil, err
		}
		expire = &ExpireOption{Seconds: secs, IsSeconds: true}
	case strings.EqualFold(opt, "PX"):
		ms, err := p.NextInt()
		if err != nil {
			return nil, err
		}
		expire = &ExpireOption{Milliseconds: ms}
	default:
		return nil, errors.New("currently `SET` only supports the expiration option")
	}

	return Set{Key: key, Value: value, Expire: expire}, nil
}

// TTL converts the expiration option to a duration. EX 0 and PX 0 both
// yield a zero duration, which the store treats as "expire immediately".
func (e *ExpireOption) TTL() time.Duration {
	if e == nil {
		return 0
	}
	if e.IsSeconds {
		return time.Duration(e.Seconds) * time.Second
	}
	return time.Duration(e.Milliseconds) * time.Millisecond
}

// HasTTL reports whether a SET command carried an EX/PX option at all
// (as opposed to having none, which means "no expiration").
func (s Set) HasTTL() bool { return s.Expire != nil }
