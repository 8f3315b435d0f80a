package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-inspect/pkg/status"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the status of a running scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := statusSocketURL(serverURL(cmd, "/ws/status"))
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", wsURL, err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
			}()

			fmt.Println(dimStyle.Render("Watching " + wsURL))
			var lastID uint64
			for {
				var st status.Status
				if err := conn.ReadJSON(&st); err != nil {
					if cmd.Context().Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return fmt.Errorf("status stream: %w", err)
				}
				fmt.Println(renderStatus(st))
				if st.Latest != nil && st.Latest.ID > lastID {
					lastID = st.Latest.ID
					fmt.Println("  " + renderEntry(*st.Latest))
				}
			}
		},
	}
	addServerFlag(cmd)
	return cmd
}

// statusSocketURL turns an http(s) URL into its ws(s) equivalent.
func statusSocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// renderStatus formats a status as one styled line.
func renderStatus(st status.Status) string {
	var b strings.Builder

	label := st.Label
	switch st.Label {
	case status.LabelScanError, status.LabelCaptureFailed:
		label = errorStyle.Render(label)
	case status.LabelIdle:
		label = dimStyle.Render(label)
	case status.LabelCooldown:
		label = successStyle.Render(label)
	default:
		label = warnStyle.Render(label)
	}
	b.WriteString(label)

	if st.Countdown != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  next capture in %ds", *st.Countdown)))
	}
	if st.Error != "" {
		b.WriteString(dimStyle.Render("  (" + st.Error + ")"))
	}
	return b.String()
}
