package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careerlens/careerlens-backend/internal/clients/pinecone"
	pkgerrors "github.com/careerlens/careerlens-backend/internal/pkg/errors"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
	"github.com/careerlens/careerlens-backend/internal/rag"
	"github.com/careerlens/careerlens-backend/internal/transcript"
	"github.com/careerlens/careerlens-backend/internal/types"
)

// fakeStatusStore records transitions instead of touching Postgres.
type fakeStatusStore struct {
	mu          sync.Mutex
	transitions []string
	reason      string
	result      RunResult
}

func (f *fakeStatusStore) record(status, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, status)
	if reason != "" {
		f.reason = reason
	}
}

func (f *fakeStatusStore) Begin(_ context.Context, userID, exportKey string) (*types.IngestRun, error) {
	f.record(types.IngestStatusPending, "")
	return &types.IngestRun{
		ID:        uuid.New(),
		UserID:    userID,
		ExportKey: exportKey,
		Status:    types.IngestStatusPending,
	}, nil
}

func (f *fakeStatusStore) MarkRunning(_ context.Context, run *types.IngestRun) error {
	run.Status = types.IngestStatusRunning
	f.record(types.IngestStatusRunning, "")
	return nil
}

func (f *fakeStatusStore) MarkCompleted(_ context.Context, run *types.IngestRun, result RunResult) error {
	run.Status = types.IngestStatusCompleted
	f.mu.Lock()
	f.result = result
	f.mu.Unlock()
	f.record(types.IngestStatusCompleted, "")
	return nil
}

func (f *fakeStatusStore) MarkFailed(_ context.Context, run *types.IngestRun, reason string) error {
	run.Status = types.IngestStatusFailed
	f.record(types.IngestStatusFailed, reason)
	return nil
}

func (f *fakeStatusStore) MarkSkipped(_ context.Context, run *types.IngestRun, reason string) error {
	run.Status = types.IngestStatusSkipped
	f.record(types.IngestStatusSkipped, reason)
	return nil
}

func (f *fakeStatusStore) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transitions) == 0 {
		return ""
	}
	return f.transitions[len(f.transitions)-1]
}

func (f *fakeStatusStore) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transitions...)
}

// fakeSource serves one blob and records archive uploads.
type fakeSource struct {
	mu          sync.Mutex
	blob        []byte
	downloadErr error
	uploads     map[string][]byte
}

func (f *fakeSource) DownloadFile(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return io.NopCloser(bytes.NewReader(f.blob)), nil
}

func (f *fakeSource) UploadFile(_ context.Context, key string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[key] = data
	return nil
}

type fakeEmbedProvider struct {
	err error
}

func (f *fakeEmbedProvider) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeVectorSink struct {
	mu        sync.Mutex
	namespace string
	vectors   []pinecone.Vector
	err       error
}

func (f *fakeVectorSink) Upsert(_ context.Context, namespace string, vectors []pinecone.Vector) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespace = namespace
	f.vectors = append(f.vectors, vectors...)
	return nil
}

type ingestFixture struct {
	svc    IngestService
	status *fakeStatusStore
	source *fakeSource
	sink   *fakeVectorSink
	worker *Worker
}

func newIngestFixture(t *testing.T, source *fakeSource, provider *fakeEmbedProvider, sink *fakeVectorSink) *ingestFixture {
	t.Helper()
	log := logger.Nop()
	status := &fakeStatusStore{}
	worker := NewWorker(log, 8, 1)
	svc := NewIngestService(
		log,
		worker,
		status,
		source,
		transcript.NewExtractor(log),
		transcript.NewNormalizer(log),
		rag.NewChunker(log, rag.NewTokenizer(), 400),
		rag.NewEmbedder(log, provider, 96, 1),
		nil,
		rag.NewIndexWriter(log, sink, rag.NewMetadataGuard(log, 40960, []string{"assistant_text", "text"}), 100),
		"embed-multilingual-v3.0",
	)
	return &ingestFixture{svc: svc, status: status, source: source, sink: sink, worker: worker}
}

const jsonEnvelope = `{"conversations":[{"conversation_id":"conv-1","title":"Kyoto Trip","messages":[` +
	`{"role":"assistant","content":"Sure, start with Gion."},` +
	`{"role":"user","content":"Plan a Kyoto trip"}]}]}`

func TestIngestRunCompletesJSONEnvelope(t *testing.T) {
	fx := newIngestFixture(t, &fakeSource{blob: []byte(jsonEnvelope)}, &fakeEmbedProvider{}, &fakeVectorSink{})

	run, err := fx.status.Begin(context.Background(), "u1", "exports/u1.json")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusCompleted {
		t.Fatalf("final status: want=%q got=%q (transitions=%v)", types.IngestStatusCompleted, got, fx.status.snapshot())
	}
	res := fx.status.result
	if res.ConversationCount != 1 || res.ChunkCount != 1 || res.VectorCount != 1 {
		t.Fatalf("result counts: got %+v", res)
	}
	if res.EmbeddingModel != "embed-multilingual-v3.0" {
		t.Fatalf("embedding model: got=%q", res.EmbeddingModel)
	}

	if fx.sink.namespace != "conversations:user:u1" {
		t.Fatalf("namespace: got=%q", fx.sink.namespace)
	}
	if len(fx.sink.vectors) != 1 {
		t.Fatalf("vectors written: want=1 got=%d", len(fx.sink.vectors))
	}
	v := fx.sink.vectors[0]
	if v.ID != "conv-1" {
		t.Fatalf("vector id: want=%q got=%q", "conv-1", v.ID)
	}
	wantMeta := map[string]any{
		"text":               "Plan a Kyoto trip",
		"assistant_text":     "Sure, start with Gion.",
		"conversation_id":    "conv-1",
		"conversation_title": "Kyoto Trip",
		"role":               transcript.RoleUser,
		"chunk_index":        0,
		"total_chunks":       1,
		"previous_chunk_id":  "",
		"next_chunk_id":      "",
	}
	for k, want := range wantMeta {
		if got := v.Metadata[k]; got != want {
			t.Fatalf("metadata %q: want=%v got=%v", k, want, got)
		}
	}
}

func TestIngestRunDownloadFailure(t *testing.T) {
	src := &fakeSource{downloadErr: fmt.Errorf("object not found")}
	fx := newIngestFixture(t, src, &fakeEmbedProvider{}, &fakeVectorSink{})

	run, _ := fx.status.Begin(context.Background(), "u1", "exports/missing.json")
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusFailed {
		t.Fatalf("final status: want=failed got=%q", got)
	}
	if fx.status.reason != ReasonExportDownloadFailed {
		t.Fatalf("reason: want=%q got=%q", ReasonExportDownloadFailed, fx.status.reason)
	}
}

func TestIngestRunParseFailure(t *testing.T) {
	fx := newIngestFixture(t, &fakeSource{blob: []byte("not an export at all")}, &fakeEmbedProvider{}, &fakeVectorSink{})

	run, _ := fx.status.Begin(context.Background(), "u1", "exports/garbage.bin")
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusFailed {
		t.Fatalf("final status: want=failed got=%q", got)
	}
	if fx.status.reason != ReasonExportParseFailed {
		t.Fatalf("reason: want=%q got=%q", ReasonExportParseFailed, fx.status.reason)
	}
}

func TestIngestRunSkipsWithoutUserTurns(t *testing.T) {
	blob := `{"conversations":[{"conversation_id":"conv-1","title":"One Sided","messages":[` +
		`{"role":"assistant","content":"Hello there."}]}]}`
	sink := &fakeVectorSink{}
	fx := newIngestFixture(t, &fakeSource{blob: []byte(blob)}, &fakeEmbedProvider{}, sink)

	run, _ := fx.status.Begin(context.Background(), "u1", "exports/u1.json")
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusSkipped {
		t.Fatalf("final status: want=skipped got=%q", got)
	}
	if fx.status.reason != ReasonNoChunksToProcess {
		t.Fatalf("reason: want=%q got=%q", ReasonNoChunksToProcess, fx.status.reason)
	}
	if len(sink.vectors) != 0 {
		t.Fatalf("sink should be untouched, got %d vectors", len(sink.vectors))
	}
}

func TestIngestRunEmbeddingFailure(t *testing.T) {
	fx := newIngestFixture(t, &fakeSource{blob: []byte(jsonEnvelope)}, &fakeEmbedProvider{err: fmt.Errorf("provider down")}, &fakeVectorSink{})

	run, _ := fx.status.Begin(context.Background(), "u1", "exports/u1.json")
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusFailed {
		t.Fatalf("final status: want=failed got=%q", got)
	}
	if fx.status.reason != ReasonEmbeddingFailed {
		t.Fatalf("reason: want=%q got=%q", ReasonEmbeddingFailed, fx.status.reason)
	}
}

func TestIngestRunIndexWriteFailure(t *testing.T) {
	fx := newIngestFixture(t, &fakeSource{blob: []byte(jsonEnvelope)}, &fakeEmbedProvider{}, &fakeVectorSink{err: fmt.Errorf("index unavailable")})

	run, _ := fx.status.Begin(context.Background(), "u1", "exports/u1.json")
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusFailed {
		t.Fatalf("final status: want=failed got=%q", got)
	}
	if fx.status.reason != ReasonIndexWriteFailed {
		t.Fatalf("reason: want=%q got=%q", ReasonIndexWriteFailed, fx.status.reason)
	}
}

const htmlExport = `<html><body><script>var jsonData = [` +
	`{"title":"Kyoto Trip","conversation_id":"conv-1","mapping":{` +
	`"3fa85f64-5717-4562-b3fc-2c963f66afa6": {"message":{"author":{"role":"assistant"},"content":{"parts":["Sure, start with Gion."]}}},` +
	`"aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee": {"message":{"author":{"role":"user"},"content":{"parts":["Plan a Kyoto trip"]}}}}}` +
	`];</script></body></html>`

func TestIngestRunArchivesHTMLExport(t *testing.T) {
	src := &fakeSource{blob: []byte(htmlExport)}
	fx := newIngestFixture(t, src, &fakeEmbedProvider{}, &fakeVectorSink{})

	run, _ := fx.status.Begin(context.Background(), "u1", "exports/u1.html")
	fx.svc.Run(context.Background(), run)

	if got := fx.status.last(); got != types.IngestStatusCompleted {
		t.Fatalf("final status: want=completed got=%q (transitions=%v)", got, fx.status.snapshot())
	}

	src.mu.Lock()
	archived, ok := src.uploads["exports/u1.html.json"]
	src.mu.Unlock()
	if !ok {
		t.Fatal("converted export was not archived")
	}
	if !bytes.Contains(archived, []byte(`"Plan a Kyoto trip"`)) {
		t.Fatalf("archive missing extracted text: %s", archived)
	}

	if len(fx.sink.vectors) != 1 {
		t.Fatalf("vectors written: want=1 got=%d", len(fx.sink.vectors))
	}
	if got := fx.sink.vectors[0].Metadata["assistant_text"]; got != "Sure, start with Gion." {
		t.Fatalf("assistant pairing: got=%v", got)
	}
}

func TestIngestEnqueueQueueFull(t *testing.T) {
	fx := newIngestFixture(t, &fakeSource{blob: []byte(jsonEnvelope)}, &fakeEmbedProvider{}, &fakeVectorSink{})

	// Fill the queue without starting the worker so Enqueue has nowhere to go.
	small := NewWorker(logger.Nop(), 1, 1)
	if err := small.Submit(func(context.Context) {}); err != nil {
		t.Fatalf("priming Submit: %v", err)
	}
	svc := fx.svc.(*ingestService)
	svc.worker = small

	run, err := svc.Enqueue(context.Background(), "u1", "exports/u1.json")
	if !errors.Is(err, pkgerrors.ErrQueueFull) {
		t.Fatalf("Enqueue: want=ErrQueueFull got=%v", err)
	}
	if run == nil {
		t.Fatal("Enqueue should still return the run row")
	}
	if got := fx.status.last(); got != types.IngestStatusFailed {
		t.Fatalf("final status: want=failed got=%q", got)
	}
	if fx.status.reason != ReasonQueueFull {
		t.Fatalf("reason: want=%q got=%q", ReasonQueueFull, fx.status.reason)
	}
}

func TestIngestEnqueueRunsOnWorker(t *testing.T) {
	fx := newIngestFixture(t, &fakeSource{blob: []byte(jsonEnvelope)}, &fakeEmbedProvider{}, &fakeVectorSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.worker.Start(ctx)

	run, err := fx.svc.Enqueue(context.Background(), "u1", "exports/u1.json")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.Status != types.IngestStatusPending {
		t.Fatalf("run status at enqueue: want=pending got=%q", run.Status)
	}

	deadline := time.Now().Add(3 * time.Second)
	for fx.status.last() != types.IngestStatusCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("run never completed, transitions=%v", fx.status.snapshot())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
