package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
)

var (
	streamURL     string
	streamSend    []string
	streamVerbose bool
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Connect to a running gateway and print the frames it sends",
	Long: `stream opens a client connection to a gateway, sends each --send frame
in order, and prints every frame received until interrupted.

  bfx-hf-data-server stream --send '["get.candles","bitfinex","tBTCUSD","1h",0,1700000000000]'
  bfx-hf-data-server stream --send '["bfx",{"event":"subscribe","channel":"ticker","symbol":"tBTCUSD"}]'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return stream(ctx, cmd.OutOrStdout(), streamURL, streamSend, streamVerbose)
	},
}

func init() {
	streamCmd.Flags().StringVar(&streamURL, "url", "ws://localhost:8899/", "gateway WebSocket URL")
	streamCmd.Flags().StringArrayVar(&streamSend, "send", nil, "frame to send after connecting (repeatable)")
	streamCmd.Flags().BoolVar(&streamVerbose, "verbose", false, "print full frame JSON")
	rootCmd.AddCommand(streamCmd)
}

// stream prints frames from the gateway at url until ctx is done or the
// gateway closes the connection.
func stream(ctx context.Context, w io.Writer, url string, send []string, verbose bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	for _, frame := range send {
		if !json.Valid([]byte(frame)) {
			return fmt.Errorf("--send %s: not valid JSON", frame)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return fmt.Errorf("send frame: %w", err)
		}
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	counts := make(map[string]int)
	defer func() { printCounts(w, counts) }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("gateway closed connection: %w", err)
			}
			return fmt.Errorf("read frame: %w", err)
		}

		tag := printFrame(w, data, verbose)
		counts[tag]++
	}
}

// printFrame writes one line per frame and returns the frame's tag.
func printFrame(w io.Writer, data []byte, verbose bool) string {
	var env []json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil || len(env) == 0 {
		fmt.Fprintf(w, "[INVALID] %s\n", data)
		return "invalid"
	}

	var tag string
	if err := json.Unmarshal(env[0], &tag); err != nil {
		fmt.Fprintf(w, "[INVALID] %s\n", data)
		return "invalid"
	}
	args := env[1:]

	if verbose {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err == nil {
			fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(tag), buf.String())
			return tag
		}
	}

	switch tag {
	case protocol.TagError:
		var e protocol.Error
		if len(args) > 0 && json.Unmarshal(args[0], &e) == nil {
			fmt.Fprintf(w, "[ERROR] code=%s message=%s\n", e.Code, e.Message)
			return tag
		}
	case protocol.TagProxy:
		if len(args) > 0 {
			fmt.Fprintf(w, "[BFX] %s\n", truncate(string(args[0]), 160))
			return tag
		}
	case protocol.TagMarkets, protocol.TagBTs:
		if len(args) > 0 {
			fmt.Fprintf(w, "[%s] count=%d\n", strings.ToUpper(tag), countItems(args[len(args)-1]))
			return tag
		}
	case protocol.TagCandles, protocol.TagTrades:
		if len(args) > 1 {
			fmt.Fprintf(w, "[%s] exchange=%s symbol=%s count=%d\n",
				strings.ToUpper(tag), unquote(args[0]), unquote(args[1]), countItems(args[len(args)-1]))
			return tag
		}
	}

	fmt.Fprintf(w, "[%s] args=%d\n", strings.ToUpper(tag), len(args))
	return tag
}

func printCounts(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = fmt.Sprintf("%s=%d", tag, counts[tag])
	}
	fmt.Fprintf(w, "received: %s\n", strings.Join(parts, " "))
}

func countItems(raw json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

func unquote(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
