package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hamed0406/webping/internal/domain"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.base, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error contacting API at %s", c.base)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return errors.Errorf("API returned %s: %s", resp.Status, e.Error)
		}
		return errors.Errorf("API returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "failed to decode %s response", path)
}

func NewRootCommand() *cobra.Command {
	c := &client{http: &http.Client{Timeout: 30 * time.Second}}

	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://127.0.0.1:3000"
	}

	cmd := &cobra.Command{
		Use:           "webping",
		Short:         "Manage monitored sites through the web-ping API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&c.base, "api", base, "Base URL of the API (env API_BASE).")

	cmd.AddCommand(
		listCommand(c),
		addCommand(c),
		updateCommand(c),
		deleteCommand(c),
		pingCommand(c),
		messageCommand(c, "start", "Start periodic pings.", "/api/ping/start"),
		messageCommand(c, "stop", "Stop periodic pings.", "/api/ping/stop"),
		statusCommand(c),
	)
	return cmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored sites.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var sites []domain.Site
			if err := c.do(http.MethodGet, "/api/sites", nil, &sites); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tURL\tINTERVAL")
			for _, s := range sites {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%ds\n", s.ID, s.Name, s.URL, s.Interval)
			}
			return tw.Flush()
		},
	}
}

func addCommand(c *client) *cobra.Command {
	var in domain.SiteInput
	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Add a site to monitor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.URL = strings.TrimSpace(args[0])
			if in.URL != "" && !strings.Contains(in.URL, "://") {
				in.URL = "https://" + in.URL
			}
			var site domain.Site
			if err := c.do(http.MethodPost, "/api/sites", in, &site); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added site %d (%s) every %ds\n", site.ID, site.URL, site.Interval)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name (defaults to the URL).")
	cmd.Flags().IntVar(&in.Interval, "interval", 0, "Probe interval in seconds (defaults to the server setting).")
	return cmd
}

func updateCommand(c *client) *cobra.Command {
	var (
		url, name string
		interval  int
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a site's URL, name or interval.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.SitePatch
			if cmd.Flags().Changed("url") {
				p.URL = &url
			}
			if cmd.Flags().Changed("name") {
				p.Name = &name
			}
			if cmd.Flags().Changed("interval") {
				p.Interval = &interval
			}
			var site domain.Site
			if err := c.do(http.MethodPut, "/api/sites/"+args[0], p, &site); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated site %d: %s (%s) every %ds\n", site.ID, site.Name, site.URL, site.Interval)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "New URL.")
	cmd.Flags().StringVar(&name, "name", "", "New display name.")
	cmd.Flags().IntVar(&interval, "interval", 0, "New probe interval in seconds.")
	return cmd
}

func deleteCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Stop monitoring a site.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.Atoi(args[0]); err != nil {
				return errors.Errorf("invalid site id %q", args[0])
			}
			var out struct {
				Message string `json:"message"`
			}
			if err := c.do(http.MethodDelete, "/api/sites/"+args[0], nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
}

func pingCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [ID]",
		Short: "Probe one site, or every site when no id is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []domain.ProbeResult
			if len(args) == 1 {
				var one domain.ProbeResult
				if err := c.do(http.MethodGet, "/api/ping/"+args[0], nil, &one); err != nil {
					return err
				}
				results = append(results, one)
			} else if err := c.do(http.MethodGet, "/api/ping", nil, &results); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tURL\tUP\tSTATUS\tTIME\tERROR")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%dms\t%s\n", r.Name, r.URL, r.Success, r.StatusCode, r.ResponseTime, r.Error)
			}
			return tw.Flush()
		},
	}
}

func messageCommand(c *client, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Message string `json:"message"`
			}
			if err := c.do(http.MethodPost, path, nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
}

func statusCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether periodic pings are running.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st struct {
				Running   bool            `json:"running"`
				Scheduled []domain.SiteID `json:"scheduled"`
			}
			if err := c.do(http.MethodGet, "/api/ping/status", nil, &st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "running=%t scheduled=%v\n", st.Running, st.Scheduled)
			return nil
		},
	}
}
