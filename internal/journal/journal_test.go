package journal

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/pkg/model"
)

func newTestAppender(t *testing.T) *Appender {
	t.Helper()
	return NewAppender(filepath.Join(t.TempDir(), "journal.jsonl"))
}

func TestAppend_BuildsChain(t *testing.T) {
	a := newTestAppender(t)

	require.NoError(t, a.Append(model.OpSetup, model.StateSucceeded, "/tmp/d", nil))
	require.NoError(t, a.Append(model.OpStart, model.StateSucceeded, "/tmp/d", map[string]any{"duration_ms": 80}))
	require.NoError(t, a.Append(model.OpStop, model.StateFailed, "/tmp/d", map[string]any{"error": "boom"}))

	records, err := a.Read()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Empty(t, records[0].PrevHash)
	assert.Equal(t, records[0].RecordHash, records[1].PrevHash)
	assert.Equal(t, records[1].RecordHash, records[2].PrevHash)
	assert.Equal(t, model.StateFailed, records[2].State)
}

func TestVerify_IntactChain(t *testing.T) {
	a := newTestAppender(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Append(model.OpStart, model.StateSucceeded, "/tmp/d", nil))
	}
	assert.NoError(t, a.Verify())
}

func TestVerify_EmptyJournal(t *testing.T) {
	assert.NoError(t, newTestAppender(t).Verify())
}

func TestVerify_DetectsTampering(t *testing.T) {
	a := newTestAppender(t)
	require.NoError(t, a.Append(model.OpSetup, model.StateSucceeded, "/tmp/d", nil))
	require.NoError(t, a.Append(model.OpStart, model.StateSucceeded, "/tmp/d", nil))

	data, err := os.ReadFile(a.path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"succeeded"`, `"failed"`, 1)
	require.NoError(t, os.WriteFile(a.path, []byte(tampered), 0o644))

	err = a.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain broken")
}

func TestVerify_DetectsDroppedRecord(t *testing.T) {
	a := newTestAppender(t)
	require.NoError(t, a.Append(model.OpSetup, model.StateSucceeded, "/tmp/d", nil))
	require.NoError(t, a.Append(model.OpStart, model.StateSucceeded, "/tmp/d", nil))
	require.NoError(t, a.Append(model.OpStop, model.StateSucceeded, "/tmp/d", nil))

	data, err := os.ReadFile(a.path)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	// Drop the middle record.
	require.NoError(t, os.WriteFile(a.path, []byte(lines[0]+lines[2]), 0o644))

	err = a.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain broken")
}

func TestAppend_Concurrent(t *testing.T) {
	a := newTestAppender(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, a.Append(model.OpStart, model.StateSucceeded, "/tmp/d", nil))
			}
		}()
	}
	wg.Wait()

	records, err := a.Read()
	require.NoError(t, err)
	assert.Len(t, records, 160)
	assert.NoError(t, a.Verify())
}
