package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RyanNg1403/tieplm/internal/config"
	"github.com/RyanNg1403/tieplm/internal/repository"
	"github.com/RyanNg1403/tieplm/internal/search"
	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/RyanNg1403/tieplm/internal/storage"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest lecture transcripts",
		Long: `Chunk, enrich, embed and store the transcripts listed in a manifest.

The manifest and transcripts may be local paths or s3://bucket/key locations.`,
		RunE: runIngest,
	}

	cmd.Flags().StringP("manifest", "m", "", "Manifest of videos to ingest (required)")
	cmd.Flags().Bool("reset", false, "Delete existing chunks and vectors of each video first")
	cmd.Flags().StringSlice("video", nil, "Only ingest these video ids (repeatable)")
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

// ingestSummary is the printable outcome of a run.
type ingestSummary struct {
	Videos       []videoSummary `json:"videos"`
	FailedVideos int            `json:"failed_videos"`
	FailedChunks int            `json:"failed_chunks"`
	Duration     string         `json:"duration"`
}

type videoSummary struct {
	VideoID  string   `json:"video_id"`
	Chunks   int      `json:"chunks"`
	Stored   int      `json:"stored"`
	Embedded int      `json:"embedded"`
	Degraded int      `json:"degraded"`
	Failed   []string `json:"failed_chunks,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	defer initTelemetry()()

	manifestPath, _ := cmd.Flags().GetString("manifest")
	reset, _ := cmd.Flags().GetBool("reset")
	only, _ := cmd.Flags().GetStringSlice("video")
	asJSON, _ := cmd.Flags().GetBool("json")

	sources, err := newTranscriptSources(ctx, cfg)
	if err != nil {
		return err
	}

	manifest, err := storage.LoadManifest(ctx, sources, manifestPath)
	if err != nil {
		return err
	}

	inputs, loadFailures := loadInputs(ctx, sources, manifest, only)
	if len(inputs) == 0 && len(loadFailures) == 0 {
		return fmt.Errorf("no videos selected from %s", manifestPath)
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := applyMigrations(cfg); err != nil {
		return err
	}

	llm, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	chunker, err := service.NewChunker(service.ChunkConfig{
		WindowSeconds:  cfg.ChunkWindowSeconds,
		OverlapSeconds: cfg.ChunkOverlapSeconds,
	})
	if err != nil {
		return err
	}

	chunkRepo := repository.NewChunkRepository(pool)
	enricher := service.NewEnricher(llm.WithChatModel(cfg.ContextModel), service.EnrichConfig{
		TokenLimit: cfg.ContextTokenLimit,
		TokenStep:  cfg.ContextTokenStep,
	})
	ingest := service.NewIngestService(
		repository.NewVideoRepository(pool),
		chunkRepo,
		repository.NewVectorRepository(pool),
		chunker,
		enricher,
		llm,
		search.NewSnapshotHolder(chunkRepo),
		service.IngestConfig{
			EmbedBatchSize:   cfg.EmbedBatchSize,
			Workers:          cfg.IngestWorkers,
			StoreMaxAttempts: cfg.StoreMaxAttempts,
			StoreBackoff:     500 * time.Millisecond,
		},
	)

	log.Printf("ingesting %d videos (reset=%v, workers=%d)", len(inputs), reset, cfg.IngestWorkers)
	start := time.Now()
	report, err := ingest.IngestAll(ctx, inputs, service.IngestOptions{Reset: reset})
	if err != nil {
		return err
	}

	summary := summarize(report, loadFailures, time.Since(start))
	if asJSON {
		output, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(output))
	} else {
		printSummary(os.Stdout, summary)
	}

	if summary.FailedVideos > 0 {
		return fmt.Errorf("%d of %d videos failed", summary.FailedVideos, len(summary.Videos))
	}
	return nil
}

// loadInputs reads the transcripts of the selected manifest entries. An
// entry whose transcript cannot be read is reported, not fatal.
func loadInputs(ctx context.Context, src storage.TranscriptSource, manifest *storage.Manifest, only []string) ([]service.VideoInput, []videoSummary) {
	selected := make(map[string]bool, len(only))
	for _, id := range only {
		selected[id] = true
	}

	var inputs []service.VideoInput
	var failures []videoSummary
	for _, entry := range manifest.Videos {
		video := entry.Video()
		if len(selected) > 0 && !selected[video.ID] {
			continue
		}

		transcript, err := storage.LoadTranscript(ctx, src, entry.Transcript)
		if err != nil {
			log.Printf("skipping %s: %v", video.ID, err)
			failures = append(failures, videoSummary{VideoID: video.ID, Error: err.Error()})
			continue
		}
		if video.Duration == 0 {
			video.Duration = transcript.Duration()
		}
		inputs = append(inputs, service.VideoInput{Video: video, Transcript: transcript})
	}
	return inputs, failures
}

func summarize(report *service.IngestReport, loadFailures []videoSummary, elapsed time.Duration) ingestSummary {
	summary := ingestSummary{
		FailedVideos: report.FailedVideos + len(loadFailures),
		FailedChunks: report.FailedChunks,
		Duration:     elapsed.Round(time.Millisecond).String(),
	}
	for _, v := range report.Videos {
		vs := videoSummary{
			VideoID:  v.VideoID,
			Chunks:   v.Chunks,
			Stored:   v.Stored,
			Embedded: v.Embedded,
			Degraded: v.Degraded,
			Failed:   v.Failed,
		}
		if v.Err != nil {
			vs.Error = v.Err.Error()
		}
		summary.Videos = append(summary.Videos, vs)
	}
	summary.Videos = append(summary.Videos, loadFailures...)
	return summary
}

func printSummary(w io.Writer, s ingestSummary) {
	for _, v := range s.Videos {
		if v.Error != "" {
			fmt.Fprintf(w, "FAIL  %s: %s\n", v.VideoID, v.Error)
			continue
		}
		fmt.Fprintf(w, "ok    %s: %d chunks, %d stored, %d embedded, %d degraded",
			v.VideoID, v.Chunks, v.Stored, v.Embedded, v.Degraded)
		if len(v.Failed) > 0 {
			fmt.Fprintf(w, ", %d failed", len(v.Failed))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%d videos, %d failed videos, %d failed chunks in %s\n",
		len(s.Videos), s.FailedVideos, s.FailedChunks, s.Duration)
}
