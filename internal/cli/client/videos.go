package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// Video is one ingested lecture.
type Video struct {
	ID       string  `json:"id"`
	Chapter  string  `json:"chapter"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// VideosCmd creates the videos command.
func VideosCmd() *cobra.Command {
	var chapter string

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List ingested lecture videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := "/videos"
			if chapter != "" {
				path += "?chapter=" + url.QueryEscape(chapter)
			}
			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to list videos: %w", err)
			}

			var videos []Video
			if err := json.Unmarshal(resp.Data, &videos); err != nil {
				return fmt.Errorf("failed to parse videos: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(videos, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(videos) == 0 {
				fmt.Println("No videos found.")
				return nil
			}
			for _, v := range videos {
				fmt.Printf("%s  %8s  %s\n", v.ID, clock(v.Duration), v.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&chapter, "chapter", "c", "", "Filter by chapter")

	return cmd
}

// ChaptersCmd creates the chapters command.
func ChaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapters",
		Short: "List course chapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/chapters")
			if err != nil {
				return fmt.Errorf("failed to list chapters: %w", err)
			}

			var chapters []string
			if err := json.Unmarshal(resp.Data, &chapters); err != nil {
				return fmt.Errorf("failed to parse chapters: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(chapters, "", "  ")
				fmt.Println(string(output))
				return nil
			}
			for _, c := range chapters {
				fmt.Println(c)
			}
			return nil
		},
	}
}
