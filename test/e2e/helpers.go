//go:build e2e

package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/api/handlers"
	"github.com/RyanNg1403/tieplm/internal/domain"
	llm "github.com/RyanNg1403/tieplm/internal/openai"
	"github.com/RyanNg1403/tieplm/internal/repository"
	"github.com/RyanNg1403/tieplm/internal/search"
	"github.com/RyanNg1403/tieplm/internal/server"
	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/RyanNg1403/tieplm/internal/storage"
	"github.com/RyanNg1403/tieplm/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	S3C        *testutil.S3Container
	Pool       *pgxpool.Pool
	S3Client   *storage.S3Client
	Snapshots  *search.SnapshotHolder
	Server     *httptest.Server
	ServerURL  string
	BinaryDir  string
	Answer     []string
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres and MinIO and serves the API with a scripted
// language model.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewS3Container(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     s3C.AccessKey,
		SecretAccessKey: s3C.SecretKey,
		Bucket:          "lectures",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		S3C:        s3C,
		Pool:       pool,
		S3Client:   s3Client,
		Snapshots:  search.NewSnapshotHolder(repository.NewChunkRepository(pool)),
		Answer:     []string{"Kernels slide ", "over the image [1]."},
		HTTPClient: &http.Client{},
	}
	env.startServer()
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.S3C != nil {
		_ = e.S3C.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) startServer() {
	videos := repository.NewVideoRepository(e.Pool)
	vectors := repository.NewVectorRepository(e.Pool)
	sessions := repository.NewSessionRepository(e.Pool)
	messages := repository.NewMessageRepository(e.Pool)

	retriever := service.NewRetriever(topicEmbedder{}, vectors, e.Snapshots, service.RetrievalConfig{})
	orchestrator := service.NewOrchestrator(
		retriever,
		service.NewCandidateReranker(nil, 5, false),
		scriptedModel{env: e},
		sessions,
		messages,
		repository.NewTxRunner(e.Pool),
		service.OrchestratorConfig{},
	)

	router := server.NewRouter(server.RouterConfig{
		AskHandler:     handlers.NewAskHandler(orchestrator),
		SessionHandler: handlers.NewSessionHandler(service.NewSessionService(sessions, messages)),
		VideoHandler:   handlers.NewVideoHandler(videos),
	})
	e.Server = httptest.NewServer(router)
	e.ServerURL = e.Server.URL
}

// UploadLecture stores a transcript of repeated sentences and returns its
// s3 location.
func (e *E2ETestEnv) UploadLecture(key, sentence string, seconds int) string {
	var t domain.Transcript
	t.Language = "vi"
	for start := 0; start < seconds; start += 10 {
		t.Segments = append(t.Segments, domain.Segment{Text: sentence, Start: float64(start), End: float64(start + 10)})
	}
	body, err := json.Marshal(t)
	if err != nil {
		e.T.Fatalf("failed to encode transcript: %v", err)
	}
	if err := e.S3Client.PutObject(e.Ctx, key, "application/json", strings.NewReader(string(body))); err != nil {
		e.T.Fatalf("failed to upload transcript: %v", err)
	}
	return fmt.Sprintf("s3://%s/%s", e.S3Client.Bucket(), key)
}

// UploadManifest stores a manifest and returns its s3 location.
func (e *E2ETestEnv) UploadManifest(key string, m storage.Manifest) string {
	body, err := json.Marshal(m)
	if err != nil {
		e.T.Fatalf("failed to encode manifest: %v", err)
	}
	if err := e.S3Client.PutObject(e.Ctx, key, "application/json", strings.NewReader(string(body))); err != nil {
		e.T.Fatalf("failed to upload manifest: %v", err)
	}
	return fmt.Sprintf("s3://%s/%s", e.S3Client.Bucket(), key)
}

// Ingest loads a manifest from S3 and ingests every video in it.
func (e *E2ETestEnv) Ingest(manifestLocation string) *service.IngestReport {
	src := storage.Sources{S3: storage.S3Source{Client: e.S3Client}}
	manifest, err := storage.LoadManifest(e.Ctx, src, manifestLocation)
	if err != nil {
		e.T.Fatalf("failed to load manifest: %v", err)
	}

	var inputs []service.VideoInput
	for _, entry := range manifest.Videos {
		transcript, err := storage.LoadTranscript(e.Ctx, src, entry.Transcript)
		if err != nil {
			e.T.Fatalf("failed to load transcript %s: %v", entry.Transcript, err)
		}
		inputs = append(inputs, service.VideoInput{Video: entry.Video(), Transcript: transcript})
	}

	chunker, err := service.NewChunker(service.DefaultChunkConfig())
	if err != nil {
		e.T.Fatalf("failed to create chunker: %v", err)
	}
	chunks := repository.NewChunkRepository(e.Pool)
	ingest := service.NewIngestService(
		repository.NewVideoRepository(e.Pool),
		chunks,
		repository.NewVectorRepository(e.Pool),
		chunker,
		titleEnricher{},
		topicEmbedder{},
		e.Snapshots,
		service.IngestConfig{},
	)
	report, err := ingest.IngestAll(e.Ctx, inputs, service.IngestOptions{Reset: true})
	if err != nil {
		e.T.Fatalf("ingest failed: %v", err)
	}
	return report
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) *APIResponse {
	return e.doRequest(http.MethodGet, path, nil)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) *APIResponse {
	return e.doRequest(http.MethodDelete, path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body io.Reader) *APIResponse {
	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, body)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	out := &APIResponse{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			e.T.Fatalf("failed to decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return out
}

// SSEEvent is one server-sent event.
type SSEEvent struct {
	Event string
	Data  json.RawMessage
}

// Ask posts to /ask and reads the whole event stream.
func (e *E2ETestEnv) Ask(body string) (int, []SSEEvent) {
	resp, err := e.HTTPClient.Post(e.ServerURL+"/ask", "application/json", strings.NewReader(body))
	if err != nil {
		e.T.Fatalf("ask failed: %v", err)
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return resp.StatusCode, nil
	}

	var events []SSEEvent
	var current SSEEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Event != "" {
				events = append(events, current)
			}
			current = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		}
	}
	return resp.StatusCode, events
}

// BuildCLI builds the tieplm client binary
func (e *E2ETestEnv) BuildCLI() {
	tmpDir, err := os.MkdirTemp("", "tieplm-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "tieplm"), "./cmd/tieplm")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build tieplm: %v\n%s", err, out)
	}
}

// RunCLI runs the tieplm CLI command
func (e *E2ETestEnv) RunCLI(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "tieplm"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Env = append(os.Environ(), fmt.Sprintf("TIEPLM_API_URL=%s", e.ServerURL))
	out, err := cmd.CombinedOutput()
	return string(out), err
}

var topicDims = map[string]int{"convolution": 0, "gradient": 1, "pooling": 2}

// topicEmbedder maps each known topic word to its own axis.
type topicEmbedder struct{}

func (topicEmbedder) embed(text string) []float32 {
	v := make([]float32, 1536)
	lower := strings.ToLower(text)
	var hits float64
	for word, dim := range topicDims {
		if strings.Contains(lower, word) {
			v[dim] = 1
			hits++
		}
	}
	if hits == 0 {
		v[len(v)-1] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(hits))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e topicEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e topicEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

type titleEnricher struct{}

func (titleEnricher) Enrich(_ context.Context, raw domain.RawChunk, _, _ *domain.RawChunk, video domain.Video) service.EnrichResult {
	note := "From " + video.Title
	return service.EnrichResult{Text: note + "\n\n" + raw.Text, Context: note, Attempts: 1}
}

// scriptedModel streams env.Answer for every prompt.
type scriptedModel struct{ env *E2ETestEnv }

func (m scriptedModel) Stream(context.Context, llm.StreamRequest) (llm.TokenReader, error) {
	return &tokenList{tokens: m.env.Answer}, nil
}

type tokenList struct {
	tokens []string
	pos    int
}

func (r *tokenList) Next() (string, error) {
	if r.pos >= len(r.tokens) {
		return "", io.EOF
	}
	r.pos++
	return r.tokens[r.pos-1], nil
}

func (r *tokenList) Close() error { return nil }
