package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())

	ch := NewChannel()
	ch.SubscribeAll(sink.Handle)
	ch.Emit(WorkflowStarted, Event{RunID: "r1", WorkflowID: "w"})
	ch.Emit(StepCompleted, Event{RunID: "r1", WorkflowID: "w", StepID: "s1", FromCache: true})
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.Error(t, sink.Handle(Event{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var evt Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		lines = append(lines, evt)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, WorkflowStarted, lines[0].Type)
	assert.Equal(t, "s1", lines[1].StepID)
	assert.True(t, lines[1].FromCache)
}

func TestFileSink_Attach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	ch := NewChannel()
	sink.Attach(ch, 16)
	assert.Equal(t, 1, ch.Len())

	for i := 0; i < 5; i++ {
		ch.Emit(StepStarted, Event{RunID: "r1", WorkflowID: "w", StepID: "s"})
	}
	require.NoError(t, sink.Close())
	assert.Equal(t, 0, ch.Len(), "closing detaches the sink")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(data), "\n"), "queued events are written before close returns")
}

func TestLogSink(t *testing.T) {
	sink := LogSink{Verbose: true}
	assert.NoError(t, sink.Handle(Event{Type: StepFailed, Message: "x"}))
	assert.NoError(t, sink.Handle(Event{Type: StepStarted, StepID: "s", Message: "x"}))
	assert.NoError(t, LogSink{}.Handle(Event{Type: WorkflowStarted, Message: "x"}))
}
