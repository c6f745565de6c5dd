package manager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/focusedcrawl/internal/hostcoord"
	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/shard"
	"github.com/ternarybob/focusedcrawl/internal/sharedstate"
	"github.com/ternarybob/focusedcrawl/internal/ssrf"
	"github.com/ternarybob/focusedcrawl/internal/store"
	"github.com/ternarybob/focusedcrawl/internal/worker"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()

	st := sharedstate.New(filepath.Join(dir, "state.json"), nil)
	writer, err := shard.New(filepath.Join(dir, "train"), nil)
	require.NoError(t, err)

	deps := worker.Deps{
		SharedState: st,
		Store:       store.New(10 * 1024 * 1024),
		Shards:      shard.NewTrainBuffer(writer, 1000),
		Hosts:       hostcoord.New(),
		Guard:       ssrf.NewGuard(),
		Metrics:     &models.Metrics{},
	}

	return New(Config{Name: "user"}, deps, writer, ssrf.NewGuard(), nil)
}

func TestCreateJobIsIdempotentOnKey(t *testing.T) {
	m := newTestManager(t)

	req := CreateJobRequest{
		Keywords:           []string{"ai"},
		Seeds:              []string{"http://8.8.8.8/"},
		MaxPages:            5,
		RelevanceThreshold:  0.3,
		RateLimitSeconds:    0.5,
		RequestedBy:         "user",
		Priority:            models.PriorityHigh,
		IdempotencyKey:      "k1",
	}

	job1, err := m.CreateJob(req)
	require.NoError(t, err)

	job2, err := m.CreateJob(req)
	require.NoError(t, err)

	assert.Equal(t, job1.ID, job2.ID)
	assert.Len(t, m.ListJobs(), 1)
}

func TestCreateJobRejectsWhenAllSeedsBlocked(t *testing.T) {
	m := newTestManager(t)

	_, err := m.CreateJob(CreateJobRequest{
		Keywords: []string{"ai"},
		Seeds:    []string{"http://169.254.169.254/meta"},
		MaxPages: 5,
	})

	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateJobDropsOnlyBlockedSeeds(t *testing.T) {
	m := newTestManager(t)

	job, err := m.CreateJob(CreateJobRequest{
		Keywords: []string{"ai"},
		Seeds:    []string{"http://169.254.169.254/meta", "http://8.8.8.8/"},
		MaxPages: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"http://8.8.8.8/"}, job.Seeds)
	assert.Equal(t, []string{"http://169.254.169.254/meta"}, job.BlockedSeeds)
}

func TestCreateJobDerivesCategory(t *testing.T) {
	m := newTestManager(t)

	job, err := m.CreateJob(CreateJobRequest{
		Keywords:    []string{"ai"},
		Seeds:       []string{"http://8.8.8.8/"},
		MaxPages:    5,
		RequestedBy: "user",
		Priority:    models.PriorityHigh,
	})

	require.NoError(t, err)
	assert.Equal(t, models.CategoryUser, job.Category)
}
