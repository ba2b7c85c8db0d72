//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneEvent struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Sources   []struct {
		Index   int    `json:"index"`
		VideoID string `json:"video_id"`
	} `json:"sources"`
}

func seedCourse(t *testing.T, env *E2ETestEnv) storage.Manifest {
	t.Helper()
	manifest := storage.Manifest{Videos: []storage.ManifestEntry{
		{
			Chapter:    "Chương 4",
			Title:      "[CS431 - Chương 4] Part 1: Convolutions",
			URL:        "https://youtu.be/conv1",
			Transcript: env.UploadLecture("chuong-4/conv1.json", "convolution kernels slide over the image", 120),
		},
		{
			Chapter:    "Chương 2",
			Title:      "[CS431 - Chương 2] Part 3: Gradient descent",
			URL:        "https://youtu.be/gd1",
			Transcript: env.UploadLecture("chuong-2/gd1.json", "gradient descent updates the weights", 120),
		},
	}}
	report := env.Ingest(env.UploadManifest("manifest.json", manifest))
	require.Zero(t, report.FailedVideos)
	require.Zero(t, report.FailedChunks)
	return manifest
}

func TestE2E_AskAndSessions(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	manifest := seedCourse(t, env)
	convID := manifest.Videos[0].Video().ID

	status, events := env.Ask(`{"query":"What does a convolution kernel do?","task_type":"qa"}`)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, events)

	var tokens strings.Builder
	for _, ev := range events {
		if ev.Event == "token" {
			var tok struct {
				Content string `json:"content"`
			}
			require.NoError(t, json.Unmarshal(ev.Data, &tok))
			tokens.WriteString(tok.Content)
		}
	}
	last := events[len(events)-1]
	require.Equal(t, "done", last.Event, "events: %+v", events)

	var done doneEvent
	require.NoError(t, json.Unmarshal(last.Data, &done))
	assert.Equal(t, "Kernels slide over the image [1].", done.Content)
	assert.Equal(t, done.Content, tokens.String())
	require.Len(t, done.Sources, 1)
	assert.Equal(t, 1, done.Sources[0].Index)
	assert.Equal(t, convID, done.Sources[0].VideoID)
	require.NotEmpty(t, done.SessionID)
	require.NotEmpty(t, done.MessageID)

	t.Run("session is listed", func(t *testing.T) {
		resp := env.Get("/sessions?task_type=qa")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page struct {
			Items []struct {
				ID       string `json:"id"`
				TaskType string `json:"task_type"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, done.SessionID, page.Items[0].ID)
		assert.Equal(t, "qa", page.Items[0].TaskType)
	})

	t.Run("exchange is persisted", func(t *testing.T) {
		resp := env.Get("/sessions/" + done.SessionID + "/messages")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var msgs []struct {
			ID      string `json:"id"`
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &msgs))
		require.Len(t, msgs, 2)
		assert.Equal(t, "user", msgs[0].Role)
		assert.Equal(t, "assistant", msgs[1].Role)
		assert.Equal(t, done.MessageID, msgs[1].ID)
		assert.Equal(t, done.Content, msgs[1].Content)
	})

	t.Run("follow-up reuses the session", func(t *testing.T) {
		status, events := env.Ask(`{"query":"And the pooling layer?","task_type":"qa","session_id":"` + done.SessionID + `"}`)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "done", events[len(events)-1].Event)

		resp := env.Get("/sessions/" + done.SessionID + "/messages")
		var msgs []json.RawMessage
		require.NoError(t, json.Unmarshal(resp.Data, &msgs))
		assert.Len(t, msgs, 4)
	})

	t.Run("delete removes the session", func(t *testing.T) {
		resp := env.Delete("/sessions/" + done.SessionID)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.Get("/sessions/" + done.SessionID + "/messages")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})
}

func TestE2E_AskValidation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	status, events := env.Ask(`{"query":"","task_type":"qa"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Empty(t, events)

	status, _ = env.Ask(`{"query":"summarize","task_type":"video_summary"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.Ask(`{"query":"hi","task_type":"poem"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestE2E_Catalog(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	seedCourse(t, env)

	resp := env.Get("/chapters")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chapters []string
	require.NoError(t, json.Unmarshal(resp.Data, &chapters))
	assert.ElementsMatch(t, []string{"Chương 2", "Chương 4"}, chapters)

	resp = env.Get("/videos?chapter=" + url.QueryEscape("Chương 4"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var videos []struct {
		Chapter  string  `json:"chapter"`
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &videos))
	require.Len(t, videos, 1)
	assert.Equal(t, "Chương 4", videos[0].Chapter)
	assert.Contains(t, videos[0].Title, "Convolutions")
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	seedCourse(t, env)
	env.BuildCLI()

	t.Run("chapters", func(t *testing.T) {
		out, err := env.RunCLI("chapters", "--output")
		require.NoError(t, err, out)
		var chapters []string
		require.NoError(t, json.Unmarshal([]byte(out), &chapters), out)
		assert.Len(t, chapters, 2)
	})

	t.Run("ask", func(t *testing.T) {
		out, err := env.RunCLI("ask", "What is a convolution?", "--output")
		require.NoError(t, err, out)
		var result struct {
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &result), out)
		assert.Equal(t, "Kernels slide over the image [1].", result.Content)
		assert.NotEmpty(t, result.SessionID)

		out, err = env.RunCLI("sessions", "show", result.SessionID, "--output")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Kernels slide over the image")
	})

	t.Run("flag overrides env url", func(t *testing.T) {
		out, err := env.RunCLI("chapters", "--api-url", "http://127.0.0.1:1")
		assert.Error(t, err, out)
	})
}
