// Command client is a terminal chat client for the GoChat server.
//
//	CHAT_URL=ws://localhost:8080/ws CHAT_NAME=alice client
//
// Lines typed on stdin are sent as chat messages. Blank lines are ignored.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"

	"github.com/Tyrowin/gochat-relay/internal/relay"
)

type config struct {
	URL    string `envconfig:"CHAT_URL" default:"ws://localhost:8080/ws"`
	Name   string `envconfig:"CHAT_NAME"`
	Origin string `envconfig:"CHAT_ORIGIN" default:"http://localhost:8080"`
	// CHAT_COLOURS toggles coloured output.
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	color.Enable = cfg.Colours

	lines := bufio.NewScanner(in)
	name := cfg.Name
	if name == "" {
		fmt.Fprint(out, "Enter your name: ")
		if lines.Scan() {
			name = strings.TrimSpace(lines.Text())
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{}
	header.Set("Origin", cfg.Origin)
	conn, resp, err := dialer.Dial(cfg.URL, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(relay.Command{Type: relay.CommandSetName, Name: name}); err != nil {
		return fmt.Errorf("set name: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- receive(conn, out)
	}()

	sent := make(chan error, 1)
	go func() {
		sent <- send(conn, lines)
	}()

	select {
	case err := <-done:
		return err
	case err := <-sent:
		if err != nil {
			return err
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	}
}

// send forwards non-blank stdin lines until EOF.
func send(conn *websocket.Conn, lines *bufio.Scanner) error {
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		if err := conn.WriteJSON(relay.Command{Type: relay.CommandSendMessage, Text: text}); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return lines.Err()
}

// receive prints server events until the connection closes.
func receive(conn *websocket.Conn, out io.Writer) error {
	for {
		var evt relay.Event
		if err := conn.ReadJSON(&evt); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code == websocket.CloseNormalClosure {
					return nil
				}
				return fmt.Errorf("server closed the connection: %s", closeErr.Text)
			}
			return err
		}
		fmt.Fprintln(out, render(evt))
	}
}

func render(evt relay.Event) string {
	switch evt.Type {
	case relay.EventHistory:
		if len(evt.History) == 0 {
			return color.Gray.Sprint("-- no earlier messages --")
		}
		rendered := make([]string, 0, len(evt.History))
		for _, msg := range evt.History {
			rendered = append(rendered, renderMessage(msg))
		}
		return strings.Join(rendered, "\n")
	case relay.EventPresenceUpdate:
		return color.Gray.Sprintf("-- %d online --", len(evt.Users))
	case relay.EventMessage:
		if evt.Message == nil {
			return ""
		}
		return renderMessage(*evt.Message)
	case relay.EventCapacityNotice:
		return color.New(color.FgRed, color.OpBold).Render(evt.Notice)
	default:
		return color.Gray.Sprintf("-- unknown event %q --", evt.Type)
	}
}

// renderMessage undoes the server's HTML escaping for terminal display.
func renderMessage(msg relay.Message) string {
	return fmt.Sprintf("%s %s %s",
		color.Gray.Sprintf("[%s]", msg.Time),
		color.New(color.FgCyan, color.OpBold).Render(html.UnescapeString(msg.Author)+":"),
		html.UnescapeString(msg.Text))
}
