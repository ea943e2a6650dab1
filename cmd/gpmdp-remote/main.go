// gpmdp-remote is a small playback API client. It finds a server on the
// local network (or uses --addr), optionally names itself, sends one
// command and prints the channel updates it receives.
//
//	gpmdp-remote --name Alice playback playPause
//	gpmdp-remote volume setVolume 40
//	gpmdp-remote --count 0 --addr 192.168.1.20:5672
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/discovery"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/logging"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

type options struct {
	addr     string
	name     string
	count    int
	browse   time.Duration
	logLevel string
}

func main() {
	opts, rest, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, opts.logLevel)

	var cmd *models.Command
	if len(rest) > 0 {
		c, err := buildCommand(rest)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cmd = &c
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url, err := resolveURL(ctx, opts)
	if err != nil {
		level.Error(logger).Log("msg", "no playback API found", "err", err)
		os.Exit(1)
	}
	level.Debug(logger).Log("msg", "connecting", "url", url)

	if err := run(ctx, url, opts, cmd, os.Stdout); err != nil {
		level.Error(logger).Log("msg", "session ended", "err", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, []string, error) {
	var opts options
	fs := pflag.NewFlagSet("gpmdp-remote", pflag.ContinueOnError)
	fs.StringVar(&opts.addr, "addr", "", "host:port of the playback API (browse mDNS when empty)")
	fs.StringVar(&opts.name, "name", "", "register as a named remote controller")
	fs.IntVar(&opts.count, "count", 0, "exit after this many messages (0 keeps reading)")
	fs.DurationVar(&opts.browse, "browse-timeout", 3*time.Second, "how long to browse for servers")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: gpmdp-remote [flags] [namespace method [json-arg ...]]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	if opts.count < 0 {
		return opts, nil, fmt.Errorf("--count must not be negative")
	}
	return opts, fs.Args(), nil
}

// buildCommand turns "namespace method args..." into a command. Each
// argument is parsed as JSON and falls back to a plain string.
func buildCommand(args []string) (models.Command, error) {
	if len(args) < 2 {
		return models.Command{}, fmt.Errorf("a command needs a namespace and a method")
	}
	cmd := models.Command{
		Namespace: args[0],
		Method:    args[1],
		Arguments: []any{},
	}
	for _, raw := range args[2:] {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		cmd.Arguments = append(cmd.Arguments, v)
	}
	return cmd, nil
}

func resolveURL(ctx context.Context, opts options) (string, error) {
	if opts.addr != "" {
		if strings.HasPrefix(opts.addr, "ws://") || strings.HasPrefix(opts.addr, "wss://") {
			return opts.addr, nil
		}
		return "ws://" + opts.addr + "/", nil
	}

	browseCtx, cancel := context.WithTimeout(ctx, opts.browse)
	defer cancel()
	endpoints, err := discovery.Browse(browseCtx, discovery.ServiceType)
	if err != nil {
		return "", err
	}
	if len(endpoints) == 0 {
		return "", fmt.Errorf("nothing answered on %s", discovery.ServiceType)
	}
	return endpoints[0].URL(), nil
}

// run holds one session: register, send, then print updates
func run(ctx context.Context, url string, opts options, cmd *models.Command, out io.Writer) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(1 << 22)

	if opts.name != "" {
		hello := models.Command{Namespace: "connect", Method: "connect", Arguments: []any{opts.name}}
		if err := send(ctx, conn, hello); err != nil {
			return err
		}
	}
	if cmd != nil {
		if err := send(ctx, conn, *cmd); err != nil {
			return err
		}
	}

	for seen := 0; opts.count == 0 || seen < opts.count; seen++ {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := printEnvelope(out, data); err != nil {
			return err
		}
	}
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, cmd models.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send %s.%s: %w", cmd.Namespace, cmd.Method, err)
	}
	return nil
}

// printEnvelope writes "channel payload" on one line
func printEnvelope(out io.Writer, data []byte) error {
	var env struct {
		Channel string          `json:"channel"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		_, err = fmt.Fprintf(out, "? %s\n", data)
		return err
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	_, err := fmt.Fprintf(out, "%s %s\n", env.Channel, payload)
	return err
}
