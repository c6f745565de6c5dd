package sharedstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkSeenReturnsTrueOnlyOnce(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"), nil)
	hash := HashURL("https://example.com/page")

	assert.True(t, s.MarkSeen(hash))
	assert.False(t, s.MarkSeen(hash))
	assert.True(t, s.HasSeen(hash))
}

func TestRegisterJobForKeyIsNoOpOnCollision(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"), nil)

	s.RegisterJobForKey("k1", "job-1")
	s.RegisterJobForKey("k1", "job-2")

	jobID, ok := s.GetJobForKey("k1")
	assert.True(t, ok)
	assert.Equal(t, "job-1", jobID)
}

func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path, nil)

	hash := HashURL("https://example.com/a")
	s.MarkSeen(hash)
	s.RegisterJobForKey("k2", "job-42")
	assert.NoError(t, s.Flush())

	reloaded := New(path, nil)
	assert.True(t, reloaded.HasSeen(hash))
	jobID, ok := reloaded.GetJobForKey("k2")
	assert.True(t, ok)
	assert.Equal(t, "job-42", jobID)
}

func TestNewStartsEmptyOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	s := New(path, nil)
	assert.False(t, s.HasSeen(HashURL("https://example.com")))
}
