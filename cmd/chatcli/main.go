// chatcli is a developer client for the real-time server. It signs dev
// tokens, opens an authenticated WebSocket session, and speaks the envelope
// protocol from the terminal.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/pawpals/social-app/internal/identity"
	"github.com/pawpals/social-app/internal/protocol"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Developer client for the pawpals real-time server",
		Long: `chatcli signs development tokens and opens an interactive chat session
against a running real-time server.

Inside a session:
  @<user> <text>     send a chat message
  /active <user>     mark yourself active in the chat with <user>
  /inactive          mark yourself inactive
  /quit              close the session`,
	}

	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newConnectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newTokenCmd() *cobra.Command {
	var userID, secret string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := identity.Sign([]byte(secret), userID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret (must match the server)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newConnectCmd() *cobra.Command {
	var url, token string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open an interactive session against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(url, token)
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "WebSocket endpoint")
	cmd.Flags().StringVar(&token, "token", "", "identity token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func runSession(url, token string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	color.Green("connected to %s", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				color.Red("connection closed: %v", err)
				return
			}
			printFrame(data)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		frame, err := buildFrame(line)
		if err != nil {
			color.Yellow("%v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return scanner.Err()
}

// buildFrame turns an input line into a wire envelope.
func buildFrame(line string) ([]byte, error) {
	switch {
	case strings.HasPrefix(line, "@"):
		to, text, ok := strings.Cut(line[1:], " ")
		if !ok || to == "" || text == "" {
			return nil, fmt.Errorf("usage: @<user> <text>")
		}
		return json.Marshal(protocol.Envelope{
			Event:   protocol.EventChatMessage,
			Payload: mustRaw(protocol.ChatPayload{To: to, Message: text}),
		})

	case strings.HasPrefix(line, "/active"):
		peer := strings.TrimSpace(strings.TrimPrefix(line, "/active"))
		if peer == "" {
			return nil, fmt.Errorf("usage: /active <user>")
		}
		return json.Marshal(protocol.Envelope{
			Event:   protocol.EventPresenceUpdate,
			Payload: mustRaw(protocol.PresencePayload{Status: protocol.StatusActive, ChatWith: peer}),
		})

	case line == "/inactive":
		return json.Marshal(protocol.Envelope{
			Event:   protocol.EventPresenceUpdate,
			Payload: mustRaw(protocol.PresencePayload{Status: protocol.StatusInactive}),
		})

	default:
		return nil, fmt.Errorf("unrecognized input (try @<user> <text>, /active <user>, /inactive, /quit)")
	}
}

func mustRaw(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// printFrame pretty-prints an inbound frame, color-coded by event.
func printFrame(data []byte) {
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		color.Red("<< unparseable frame: %s", data)
		return
	}

	switch frame["event"] {
	case protocol.EventFriendStatusUpdate:
		color.Cyan("<< friend %v active=%v chatWith=%v", frame["userId"], frame["isActive"], frame["chatWith"])
	case protocol.EventPeerPresence:
		color.Magenta("<< peer %v active=%v chatWith=%v", frame["userId"], frame["isActive"], frame["chatWith"])
	default:
		// Raw chat message: the persisted shape.
		color.White("<< [%v] %v: %v", frame["timestamp"], frame["from"], frame["message"])
	}
}
