package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kopihq/kopi/internal/sessions"
)

// NewSessionsCommand returns the sessions subcommand.
func NewSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect and manage conversation sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway base URL",
				Value: "http://127.0.0.1:8420",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all sessions",
				Action: runSessionsList,
			},
			{
				Name:      "show",
				Usage:     "Show turns in a session",
				ArgsUsage: "<session_id>",
				Action:    runSessionsShow,
			},
			{
				Name:      "delete",
				Usage:     "Delete a session",
				ArgsUsage: "<session_id>",
				Action:    runSessionsDelete,
			},
		},
		DefaultCommand: "list",
	}
}

func gatewayGet(cmd *cli.Command, path string, v any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	url := strings.TrimRight(cmd.String("gateway"), "/") + path
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway: %s", apiErr.Error)
		}
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func runSessionsList(_ context.Context, cmd *cli.Command) error {
	var list []sessions.Meta
	if err := gatewayGet(cmd, "/api/sessions", &list); err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTURNS\tCREATED\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			s.ID,
			s.TurnCount,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runSessionsShow(_ context.Context, cmd *cli.Command) error {
	sessionID := cmd.Args().First()
	if sessionID == "" {
		return fmt.Errorf("usage: kopi sessions show <session_id>")
	}

	var hist struct {
		SessionID string          `json:"session_id"`
		Turns     []sessions.Turn `json:"turns"`
	}
	if err := gatewayGet(cmd, "/api/sessions/"+sessionID+"/history", &hist); err != nil {
		return err
	}

	if len(hist.Turns) == 0 {
		fmt.Println("No turns in this session.")
		return nil
	}

	for _, t := range hist.Turns {
		fmt.Printf("[%d] %s\n", t.Number, t.Ts.Format("15:04:05"))
		fmt.Printf("  User: %s\n", t.UserMessage)
		fmt.Printf("  Kopi: %s\n", t.BotResponse)
	}
	return nil
}

func runSessionsDelete(_ context.Context, cmd *cli.Command) error {
	sessionID := cmd.Args().First()
	if sessionID == "" {
		return fmt.Errorf("usage: kopi sessions delete <session_id>")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	url := strings.TrimRight(cmd.String("gateway"), "/") + "/api/sessions/" + sessionID
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	fmt.Printf("Deleted session %s\n", sessionID)
	return nil
}
