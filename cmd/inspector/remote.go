package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-inspect/internal/httpc"
	"github.com/teslashibe/go-inspect/pkg/scanlog"
	"github.com/teslashibe/go-inspect/pkg/status"
)

const defaultServer = "http://localhost:8080"

func addServerFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("server", "s", defaultServer, "scanner base URL")
}

func serverURL(cmd *cobra.Command, path string) string {
	base, _ := cmd.Flags().GetString("server")
	return strings.TrimSuffix(base, "/") + path
}

// callJSON performs a request against the scanner API and decodes the
// JSON answer into out.
func callJSON(cmd *cobra.Command, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, serverURL(cmd, path), nil)
	if err != nil {
		return err
	}
	resp, err := httpc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("scanner unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func newControlCmd(action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st status.Status
			if err := callJSON(cmd, http.MethodPost, "/api/"+action, &st); err != nil {
				return err
			}
			fmt.Println(renderStatus(st))
			return nil
		},
	}
	addServerFlag(cmd)
	return cmd
}

func newScansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "List recent scans of a running scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{"limit": {strconv.Itoa(limit)}}

			var entries []scanlog.Entry
			if err := callJSON(cmd, http.MethodGet, "/api/scans?"+q.Encode(), &entries); err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(dimStyle.Render("No scans yet."))
				return nil
			}
			for _, e := range entries {
				fmt.Println(renderEntry(e))
			}
			return nil
		},
	}
	addServerFlag(cmd)
	cmd.Flags().IntP("limit", "n", 20, "number of scans to show (0 for all)")
	return cmd
}
