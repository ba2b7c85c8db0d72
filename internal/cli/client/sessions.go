package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// Session is one conversation thread.
type Session struct {
	ID        string `json:"id"`
	TaskType  string `json:"task_type"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SessionPage is one page of GET /sessions.
type SessionPage struct {
	Items   []Session `json:"items"`
	Cursor  string    `json:"cursor,omitempty"`
	HasMore bool      `json:"has_more"`
}

// Message is one stored turn of a session.
type Message struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Sources   []Source `json:"sources"`
	CreatedAt string   `json:"created_at"`
}

// SessionsCmd creates the sessions command group.
func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse chat sessions",
	}
	cmd.AddCommand(sessionsListCmd(), sessionsShowCmd(), sessionsDeleteCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	var (
		taskType string
		limit    int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if taskType != "" {
				query.Set("task_type", taskType)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				query.Set("cursor", cursor)
			}
			path := "/sessions"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			var page SessionPage
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse sessions: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(page, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(page.Items) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}
			for _, s := range page.Items {
				fmt.Printf("%s  %-13s  %s  %s\n", s.ID, s.TaskType, s.UpdatedAt, s.Title)
			}
			if page.HasMore {
				fmt.Printf("\nMore results: --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskType, "task", "t", "", "Filter by task type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/sessions/" + url.PathEscape(args[0]) + "/messages")
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}

			var messages []Message
			if err := json.Unmarshal(resp.Data, &messages); err != nil {
				return fmt.Errorf("failed to parse messages: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(messages, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			for _, m := range messages {
				fmt.Printf("[%s] %s\n%s\n", m.Role, m.CreatedAt, m.Content)
				for _, s := range m.Sources {
					fmt.Printf("  [%d] %s (%s-%s)\n", s.Index, s.VideoTitle, clock(s.Start), clock(s.End))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/sessions/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}
