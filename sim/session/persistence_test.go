package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/service"
)

type persistenceFactory func(t *testing.T) SessionPersistence

func backends() map[string]persistenceFactory {
	return map[string]persistenceFactory{
		"file": func(t *testing.T) SessionPersistence {
			fp, err := NewFilePersistence(filepath.Join(t.TempDir(), "sessions"))
			require.NoError(t, err)
			return fp
		},
		"sqlite": func(t *testing.T) SessionPersistence {
			sp, err := NewSQLitePersistence(filepath.Join(t.TempDir(), "db", "autodrive.db"))
			require.NoError(t, err)
			t.Cleanup(func() { sp.Close() })
			return sp
		},
	}
}

func runSession(t *testing.T, session *service.Session) {
	t.Helper()
	eng, err := session.Scenario.NewEngine()
	require.NoError(t, err)
	result, err := eng.Run()
	require.NoError(t, err)
	session.LastRun = &service.RunRecord{
		RunID:     "run-" + session.ID + "-" + time.Now().Format("150405.000000000"),
		StartedAt: time.Now(),
		Duration:  3 * time.Millisecond,
		Result:    result,
	}
}

func newSession(id string) *service.Session {
	now := time.Now()
	return &service.Session{
		ID:             id,
		ScenarioID:     "default",
		Scenario:       engine.DefaultScenario(),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)

			original := newSession("ab12")
			runSession(t, original)
			require.NoError(t, p.Save(original))

			assert.True(t, p.Exists("ab12"))
			assert.True(t, p.Exists("AB12"), "lookups are case-insensitive")

			loaded, err := p.Load("ab12")
			require.NoError(t, err)

			assert.Equal(t, original.ID, loaded.ID)
			assert.Equal(t, original.ScenarioID, loaded.ScenarioID)
			assert.Equal(t, original.Scenario, loaded.Scenario)
			assert.True(t, original.CreatedAt.Equal(loaded.CreatedAt))
			assert.True(t, original.LastAccessedAt.Equal(loaded.LastAccessedAt))

			require.NotNil(t, loaded.LastRun)
			assert.Equal(t, original.LastRun.RunID, loaded.LastRun.RunID)
			assert.Equal(t, original.LastRun.Duration, loaded.LastRun.Duration)
			assert.Equal(t, original.LastRun.Result.Final, loaded.LastRun.Result.Final)
			assert.Equal(t, original.LastRun.Result.Collisions, loaded.LastRun.Result.Collisions)
			assert.Len(t, loaded.LastRun.Result.Ticks, len(original.LastRun.Result.Ticks))
		})
	}
}

func TestPersistence_Overwrite(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)

			s := newSession("cd34")
			runSession(t, s)
			require.NoError(t, p.Save(s))

			// Start over: vehicles and run dropped
			s.Scenario.Vehicles = nil
			s.LastRun = nil
			require.NoError(t, p.Save(s))

			loaded, err := p.Load("cd34")
			require.NoError(t, err)
			assert.Empty(t, loaded.Scenario.Vehicles)
			assert.Nil(t, loaded.LastRun)
		})
	}
}

func TestPersistence_ListAndDelete(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)

			for _, id := range []string{"aaaa", "bbbb", "cccc"} {
				require.NoError(t, p.Save(newSession(id)))
			}

			ids, err := p.ListAll()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"aaaa", "bbbb", "cccc"}, ids)

			require.NoError(t, p.Delete("bbbb"))
			assert.False(t, p.Exists("bbbb"))

			_, err = p.Load("bbbb")
			assert.ErrorIs(t, err, ErrSessionNotFound)
			assert.ErrorIs(t, p.Delete("bbbb"), ErrSessionNotFound)

			ids, err = p.ListAll()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"aaaa", "cccc"}, ids)
		})
	}
}

func TestPersistence_SaveNil(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, factory(t).Save(nil))
		})
	}
}

func TestFilePersistence_FileStructure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	fp, err := NewFilePersistence(dir)
	require.NoError(t, err)

	require.NoError(t, fp.Save(newSession("EF56")))

	_, err = os.Stat(filepath.Join(dir, "ef56.json"))
	require.NoError(t, err, "session files use lower-case IDs")

	// Non-session entries are ignored when listing
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	ids, err := fp.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"ef56"}, ids)
}

func TestFilePersistence_RejectsInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir)
	require.NoError(t, err)

	data := `{"id":"bad1","scenario_id":"x","scenario":{"name":"x","field":{"width":0,"height":3}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad1.json"), []byte(data), 0644))

	_, err = fp.Load("bad1")
	assert.ErrorIs(t, err, engine.ErrInvalidScenario)
}

func TestSQLitePersistence_RunHistory(t *testing.T) {
	sp, err := NewSQLitePersistence(":memory:")
	require.NoError(t, err)
	defer sp.Close()

	s := newSession("gh78")
	runSession(t, s)
	first := s.LastRun.RunID
	require.NoError(t, sp.Save(s))

	s.LastRun.StartedAt = s.LastRun.StartedAt.Add(time.Second)
	s.LastRun.RunID = first + "-again"
	require.NoError(t, sp.Save(s))

	// Saving the same run twice keeps one row
	require.NoError(t, sp.Save(s))

	history, err := sp.RunHistory("GH78")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first+"-again", history[0].RunID)
	assert.Equal(t, first, history[1].RunID)
	assert.Equal(t, 10, history[0].Ticks)
	assert.Equal(t, 2, history[0].Collisions)
	assert.Equal(t, 0, history[0].Survivors)

	loaded, err := sp.Load("gh78")
	require.NoError(t, err)
	assert.Equal(t, first+"-again", loaded.LastRun.RunID)

	require.NoError(t, sp.Delete("gh78"))
	history, err = sp.RunHistory("gh78")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManagerWithPersistence(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)
			manager := NewManagerWithPersistence(p, nil)

			created, err := manager.Create("", "default", engine.DefaultScenario())
			require.NoError(t, err)
			assert.True(t, p.Exists(created.ID), "sessions are persisted on create")

			runSession(t, created)
			require.NoError(t, manager.Save(created.ID))

			// A fresh manager sees the session through persistence
			restarted := NewManagerWithPersistence(p, nil)
			loaded, err := restarted.Get(created.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded.LastRun)
			assert.Equal(t, created.LastRun.RunID, loaded.LastRun.RunID)

			// Bulk load
			other := NewManagerWithPersistence(p, nil)
			require.NoError(t, other.LoadPersistedSessions())
			assert.Equal(t, 1, other.Count())

			// IDs in storage cannot be reused
			_, err = other.Create(created.ID, "default", engine.DefaultScenario())
			assert.ErrorIs(t, err, ErrSessionAlreadyExists)

			require.NoError(t, other.SaveAllSessions())

			require.NoError(t, other.Delete(created.ID))
			assert.False(t, p.Exists(created.ID))
			_, err = NewManagerWithPersistence(p, nil).Get(created.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestManagerWithPersistence_CleanupRemovesStoredSession(t *testing.T) {
	fp, err := NewFilePersistence(t.TempDir())
	require.NoError(t, err)
	manager := NewManagerWithPersistence(fp, nil)

	s, err := manager.Create("old1", "default", engine.DefaultScenario())
	require.NoError(t, err)
	s.LastAccessedAt = time.Now().Add(-48 * time.Hour)

	assert.Equal(t, 1, manager.CleanupExpiredSessions(DefaultMaxIdle))
	assert.False(t, fp.Exists("old1"))
}
