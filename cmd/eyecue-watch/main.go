// eyecue-watch connects to a running eyecue and prints its live gaze and
// calibration events.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// envelope mirrors hub.Envelope with the payload left raw.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "eyecue web address")
	gaze := flag.Bool("gaze", true, "Watch /ws/gaze")
	calib := flag.Bool("calibration", true, "Watch /ws/calibration")
	every := flag.Int("every", 1, "Print every Nth gaze event")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if *gaze {
		g.Go(func() error { return watch(gctx, wsURL(*addr, "/ws/gaze"), os.Stdout, *every) })
	}
	if *calib {
		g.Go(func() error { return watch(gctx, wsURL(*addr, "/ws/calibration"), os.Stdout, 1) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func wsURL(addr, path string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	return u.String()
}

// watch prints events from one endpoint until ctx is done or the server
// closes the connection. Only every nth event of each type is printed.
func watch(ctx context.Context, endpoint string, out io.Writer, nth int) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	if nth < 1 {
		nth = 1
	}
	seen := make(map[string]int)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read %s: %w", endpoint, err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			fmt.Fprintf(out, "? %s\n", data)
			continue
		}
		seen[env.Type]++
		if (seen[env.Type]-1)%nth != 0 {
			continue
		}
		fmt.Fprintln(out, format(env))
	}
}

// format renders an event as "type payload" with a compact payload.
func format(env envelope) string {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Type
	}
	return fmt.Sprintf("%-10s %s", env.Type, env.Data)
}
