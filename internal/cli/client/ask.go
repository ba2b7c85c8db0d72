package client

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

	"github.com/spf13/cobra"
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Query     string   `json:"query"`
	TaskType  string   `json:"task_type,omitempty"`
	Chapters  []string `json:"chapters,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	VideoID   string   `json:"video_id,omitempty"`
}

// Source is one cited transcript chunk.
type Source struct {
	Index      int     `json:"index"`
	ChunkID    string  `json:"chunk_id"`
	VideoID    string  `json:"video_id"`
	Chapter    string  `json:"chapter"`
	VideoTitle string  `json:"video_title"`
	VideoURL   string  `json:"video_url"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text,omitempty"`
	Score      float64 `json:"score"`
}

// AskResult is the final state of an answered request.
type AskResult struct {
	Content   string   `json:"content"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
	MessageID string   `json:"message_id"`
}

type tokenPayload struct {
	Content string `json:"content"`
}

type errorPayload struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrGenerationFailed is returned when the server ends a stream with an
// error event.
var ErrGenerationFailed = errors.New("generation failed")

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var req AskRequest

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a question about the course",
		Long: `Streams an answer grounded in the lecture transcripts.

Task types: qa (default), text_summary, video_summary, quiz.
video_summary and quiz can be scoped to one lecture with --video.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req.Query = args[0]
			out := io.Writer(os.Stdout)
			if outputJSON {
				out = io.Discard
			}
			result, err := runAsk(ctx, api, req, out)
			if err != nil {
				return err
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}
			printSources(os.Stdout, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.TaskType, "task", "t", "qa", "Task type")
	cmd.Flags().StringSliceVarP(&req.Chapters, "chapter", "c", nil, "Restrict retrieval to chapters (repeatable)")
	cmd.Flags().StringVarP(&req.SessionID, "session", "s", "", "Continue an existing session")
	cmd.Flags().StringVar(&req.VideoID, "video", "", "Target video id for video_summary and quiz")

	return cmd
}

// runAsk streams the answer to out token by token and returns the final
// result from the done event.
func runAsk(ctx context.Context, api *APIClient, req AskRequest, out io.Writer) (*AskResult, error) {
	var result *AskResult

	err := api.Stream(ctx, "/ask", req, func(event string, data []byte) error {
		switch event {
		case "token":
			var tok tokenPayload
			if err := json.Unmarshal(data, &tok); err != nil {
				return fmt.Errorf("bad token event: %w", err)
			}
			fmt.Fprint(out, tok.Content)
		case "done":
			var done AskResult
			if err := json.Unmarshal(data, &done); err != nil {
				return fmt.Errorf("bad done event: %w", err)
			}
			result = &done
			fmt.Fprintln(out)
		case "error":
			var ev errorPayload
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("bad error event: %w", err)
			}
			fmt.Fprintln(out)
			return fmt.Errorf("%w: %s", ErrGenerationFailed, ev.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("stream ended before the answer completed")
	}
	return result, nil
}

func printSources(w io.Writer, result *AskResult) {
	if len(result.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range result.Sources {
			fmt.Fprintf(w, "  [%d] %s (%s-%s)\n", s.Index, s.VideoTitle, clock(s.Start), clock(s.End))
			if s.VideoURL != "" {
				fmt.Fprintf(w, "      %s\n", timestampURL(s.VideoURL, s.Start))
			}
		}
	}
	fmt.Fprintf(w, "\nSession: %s\n", result.SessionID)
}

// timestampURL links to the moment a chunk starts.
func timestampURL(url string, start float64) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%ds", url, sep, int(start))
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
