package alert

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/pkg/types"
)

func testAlert() types.Alert {
	return types.Alert{
		Level:     types.AlertLevelError,
		RunID:     "01HZX",
		Key:       types.RunKey{Workflow: "integration", Subject: "pr-12"},
		Verdict:   types.VerdictFailed,
		Message:   "gate failed",
		Failed:    []string{"aws"},
		Timestamp: time.Now(),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (m *mockEventBridge) PutEvents(_ context.Context, input *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	if m.out != nil {
		return m.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

type failingSink struct{ calls int }

func (s *failingSink) Name() string { return "failing" }
func (s *failingSink) Send(context.Context, types.Alert) error {
	s.calls++
	return errors.New("down")
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	assert.Equal(t, "console", sink.Name())

	ctx := context.Background()
	for _, level := range []types.AlertLevel{types.AlertLevelError, types.AlertLevelWarning, types.AlertLevelInfo} {
		a := testAlert()
		a.Level = level
		require.NoError(t, sink.Send(ctx, a))
	}
	assert.Contains(t, buf.String(), "integration:pr-12")
	assert.Contains(t, buf.String(), "failed: aws")
}

func TestWebhookSink_Send_Success(t *testing.T) {
	var received types.Alert
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL, WithWebhookLogger(quietLogger()))
	alert := testAlert()

	require.NoError(t, sink.Send(context.Background(), alert))
	assert.Equal(t, alert.Message, received.Message)
	assert.Equal(t, alert.Key, received.Key)
}

func TestWebhookSink_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL, WithWebhookLogger(quietLogger())).Send(context.Background(), testAlert())
	assert.ErrorContains(t, err, "500")
}

func TestWebhookSink_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL, WithWebhookLogger(quietLogger()))
	ctx := context.Background()
	for i := 0; i < webhookTripFailures; i++ {
		assert.Error(t, sink.Send(ctx, testAlert()))
	}

	err := sink.Send(ctx, testAlert())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(webhookTripFailures), hits.Load(), "open breaker must not reach the endpoint")
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, testAlert()))
	shortCircuit := testAlert()
	shortCircuit.Level = types.AlertLevelWarning
	shortCircuit.Verdict = ""
	require.NoError(t, sink.Send(ctx, shortCircuit))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []fileLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line fileLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "01HZX", lines[0].RunID)
	assert.Equal(t, "integration:pr-12", lines[0].RunKey)
	require.NotNil(t, lines[0].ExitCode)
	assert.Equal(t, 1, *lines[0].ExitCode)
	assert.Equal(t, []string{"aws"}, lines[0].Failed)

	assert.Equal(t, types.AlertLevelWarning, lines[1].Level)
	assert.Nil(t, lines[1].ExitCode, "no verdict, no exit code")
}

func TestFileSink_BadPath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "dir", "alerts.jsonl"))
	assert.Error(t, err)
}

func TestEventBridgeSink_Send(t *testing.T) {
	mock := &mockEventBridge{}
	sink, err := NewEventBridgeSink(context.Background(), "ci-bus", WithEventBridgeSinkClient(mock), WithEventSource("acme.ci"))
	require.NoError(t, err)
	assert.Equal(t, "eventbridge", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, mock.inputs, 1)
	entry := mock.inputs[0].Entries[0]
	assert.Equal(t, "ci-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, "acme.ci", aws.ToString(entry.Source))
	assert.Equal(t, verdictDetailType, aws.ToString(entry.DetailType))

	var detail types.Alert
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, types.VerdictFailed, detail.Verdict)
}

func TestEventBridgeSink_FailedEntry(t *testing.T) {
	mock := &mockEventBridge{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []ebtypes.PutEventsResultEntry{{ErrorMessage: aws.String("throttled")}},
	}}
	sink, err := NewEventBridgeSink(context.Background(), "ci-bus", WithEventBridgeSinkClient(mock))
	require.NoError(t, err)
	assert.ErrorContains(t, sink.Send(context.Background(), testAlert()), "throttled")
}

func TestEventBridgeSink_RequiresBus(t *testing.T) {
	_, err := NewEventBridgeSink(context.Background(), "", WithEventBridgeSinkClient(&mockEventBridge{}))
	assert.Error(t, err)
}

func TestNewDispatcher(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	mock := &mockEventBridge{}

	d, err := NewDispatcher(ctx, []types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertFile, Path: path},
		{Type: types.AlertWebhook, URL: "http://127.0.0.1:1/hook"},
		{Type: types.AlertEventBridge, EventBusName: "ci-bus"},
	}, WithConsoleOutput(io.Discard), WithEventBridgeClient(mock), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 4, d.Len())

	_, err = NewDispatcher(ctx, []types.AlertConfig{{Type: "pager"}})
	assert.Error(t, err)
	_, err = NewDispatcher(ctx, []types.AlertConfig{{Type: types.AlertWebhook}})
	assert.Error(t, err)
	_, err = NewDispatcher(ctx, []types.AlertConfig{{Type: types.AlertFile}})
	assert.Error(t, err)
}

func TestDispatch_ContinuesPastFailures(t *testing.T) {
	failing := &failingSink{}
	mock := &mockEventBridge{}
	eb, err := NewEventBridgeSink(context.Background(), "ci-bus", WithEventBridgeSinkClient(mock))
	require.NoError(t, err)

	d, err := NewDispatcher(context.Background(), nil, WithSinks(failing, eb), WithLogger(quietLogger()))
	require.NoError(t, err)

	d.Dispatch(context.Background(), testAlert())
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, mock.inputs, 1)

	var nilDispatcher *Dispatcher
	assert.NotPanics(t, func() { nilDispatcher.Dispatch(context.Background(), testAlert()) })
}
