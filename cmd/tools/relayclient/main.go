// Command relayclient is an interactive terminal client for the relay, in
// user mode or, with --operator, as a human operator.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

func main() {
	url := pflag.String("url", "ws://localhost:8080/ws", "relay WebSocket endpoint")
	operator := pflag.Bool("operator", false, "log in as an operator")
	password := pflag.String("password", "", "operator password (defaults to OPERATOR_PASSWORD, then a prompt)")
	name := pflag.String("name", "", "display name to set after connecting")
	noColor := pflag.Bool("no-color", false, "disable colored output")
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded, using process environment", "error", err)
	}
	if *noColor {
		color.NoColor = true
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		fatal("failed to connect", "url", *url, "error", err)
	}
	defer conn.Close()

	out := color.Output
	c := &client{conn: conn}
	input := bufio.NewScanner(os.Stdin)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop(out)
	}()

	if *operator {
		secret := *password
		if secret == "" {
			secret = os.Getenv("OPERATOR_PASSWORD")
		}
		if secret == "" {
			fmt.Fprint(out, "Password: ")
			if !input.Scan() {
				return
			}
			secret = strings.TrimSpace(input.Text())
		}
		if err := c.send(protocol.Auth{Password: secret}); err != nil {
			fatal("failed to send auth", "error", err)
		}
	}
	if *name != "" {
		if err := c.send(protocol.SetName{Name: *name}); err != nil {
			fatal("failed to set name", "error", err)
		}
	}

	fmt.Fprint(out, helpText(*operator))

	lines := make(chan string)
	go func() {
		defer close(lines)
		for input.Scan() {
			lines <- input.Text()
		}
	}()

	for {
		select {
		case <-done:
			fmt.Fprintln(out, "Connection closed")
			return
		case line, ok := <-lines:
			if !ok {
				c.close()
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, act, err := parseInput(line, *operator)
			if err != nil {
				errorColor.Fprintf(out, "%v\n", err)
				continue
			}
			switch act {
			case actionQuit:
				c.close()
				return
			case actionHelp:
				fmt.Fprint(out, helpText(*operator))
				continue
			}
			if err := c.send(cmd); err != nil {
				errorColor.Fprintf(out, "send failed: %v\n", err)
				return
			}
		}
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(cmd protocol.Inbound) error {
	data, err := protocol.EncodeInbound(cmd)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *client) readLoop(out io.Writer) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("read error", "error", err)
			}
			return
		}
		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			slog.Warn("ignoring malformed frame", "error", err)
			continue
		}
		render(out, frame)
	}
}
