package moderation

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ParseDuration implements the `<int><unit>` duration scanner, unit ∈
// {m, h, d}, clamped to a 30-second minimum: a 1-second mute is
// indistinguishable from a no-op once network latency is accounted for.
func ParseDuration(arg string) (time.Duration, error) {
	if len(arg) < 2 {
		return 0, errors.Errorf("invalid time spec %q", arg)
	}
	head, unit := arg[:len(arg)-1], arg[len(arg)-1:]
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, errors.New("enter a number")
	}
	var d time.Duration
	switch unit {
	case "m":
		d = time.Duration(n) * time.Minute
	case "h":
		d = time.Duration(n) * time.Hour
	case "d":
		d = time.Duration(n) * 24 * time.Hour
	default:
		return 0, errors.Errorf("invalid time spec %q", arg)
	}
	if d < 30*time.Second {
		d = 30 * time.Second
	}
	return d, nil
}
