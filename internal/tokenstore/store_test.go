package tokenstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlookmcp/pkg/logging"
)

const testPrefix = ".outlook-mcp-tokens-"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Dir: t.TempDir(), FilePrefix: testPrefix})
	require.NoError(t, err)
	return store
}

func sampleRecord(accessToken string) *TokenRecord {
	return &TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: "refresh-" + accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)
	record := sampleRecord("at-1")
	record.Extra = map[string]any{"ext_expires_in": float64(3600)}

	require.NoError(t, store.Save("alice@example.com", record))

	loaded, ok := store.Load("alice@example.com")
	require.True(t, ok)
	assert.Equal(t, record, loaded)
}

func TestStore_FileLayoutAndPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions")
	}

	dir := filepath.Join(t.TempDir(), "tokens")
	store, err := New(Config{Dir: dir, FilePrefix: testPrefix})
	require.NoError(t, err)

	require.NoError(t, store.Save("alice@example.com", sampleRecord("at")))

	path := filepath.Join(dir, testPrefix+"alice@example.com.json")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "at", raw["access_token"])
	assert.Contains(t, raw, "expires_at")
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	record, ok := store.Load("nobody")
	assert.False(t, ok)
	assert.Nil(t, record)
}

func TestStore_LoadUnparsableIsAbsent(t *testing.T) {
	var buf bytes.Buffer
	logging.InitForCLI(logging.LevelWarn, &buf)
	t.Cleanup(func() { logging.InitForCLI(logging.LevelInfo, os.Stderr) })

	store := newTestStore(t)
	path, err := store.Path("alice")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	record, ok := store.Load("alice")
	assert.False(t, ok)
	assert.Nil(t, record)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "unparsable")
}

func TestStore_LoadInvalidIdentity(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Load("")
	assert.False(t, ok)

	assert.ErrorIs(t, store.Save("", sampleRecord("at")), ErrInvalidIdentity)
	assert.ErrorIs(t, store.Save(strings.Repeat("x", 201), sampleRecord("at")), ErrInvalidIdentity)
	assert.ErrorIs(t, store.Delete("bad\nid"), ErrInvalidIdentity)
}

func TestStore_SaveNilRecord(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save("alice", nil))
}

func TestStore_IsolationAcrossIdentities(t *testing.T) {
	store := newTestStore(t)

	identities := []string{"alice", "Alice", "alice/..", "alice%2F..", "bob"}
	for i, id := range identities {
		require.NoError(t, store.Save(id, sampleRecord(fmt.Sprintf("at-%d", i))))
	}

	for i, id := range identities {
		record, ok := store.Load(id)
		require.True(t, ok, id)
		assert.Equal(t, fmt.Sprintf("at-%d", i), record.AccessToken, id)
	}

	require.NoError(t, store.Delete("alice"))
	_, ok := store.Load("alice")
	assert.False(t, ok)
	_, ok = store.Load("Alice")
	assert.True(t, ok)
}

func TestStore_PathStaysInDirectory(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"../../etc/passwd", "..", "/abs", `..\..\win`} {
		path, err := store.Path(id)
		require.NoError(t, err)
		assert.Equal(t, store.Dir(), filepath.Dir(path), id)
	}
}

func TestStore_SaveReplacesWithoutLeftovers(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("alice", sampleRecord("first")))
	require.NoError(t, store.Save("alice", sampleRecord("second")))

	record, ok := store.Load("alice")
	require.True(t, ok)
	assert.Equal(t, "second", record.AccessToken)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testPrefix+"alice.json", entries[0].Name())
}

func TestStore_ConcurrentSavesSameIdentity(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Save("alice", sampleRecord(fmt.Sprintf("at-%d", i))))
		}(i)
	}

	// readers never see a partial file
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			path, _ := store.Path("alice")
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var record TokenRecord
			assert.NoError(t, json.Unmarshal(data, &record))
		}
	}()

	wg.Wait()
	<-done

	record, ok := store.Load("alice")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(record.AccessToken, "at-"))
}

func TestStore_ConcurrentLoadsReturnIndependentCopies(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("alice", sampleRecord("at")))

	var wg sync.WaitGroup
	results := make([]*TokenRecord, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = store.Load("alice")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "at", r.AccessToken)
	}
	results[0].AccessToken = "mutated"
	assert.Equal(t, "at", results[1].AccessToken)
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Delete("nobody"))
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("bob", sampleRecord("at-bob")))
	require.NoError(t, store.Save("alice@example.com", sampleRecord("at-alice")))

	broken, err := store.Path("carol")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(broken, []byte("garbage"), 0600))

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "other.json"), []byte("{}"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), testPrefix+"dir.json"), 0700))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "alice@example.com", entries[0].Identity)
	assert.Equal(t, "at-alice", entries[0].Record.AccessToken)
	assert.Equal(t, "bob", entries[1].Identity)
	assert.Equal(t, "carol", entries[2].Identity)
	assert.Nil(t, entries[2].Record)
	assert.False(t, entries[0].ModTime.IsZero())
}

func TestStore_ListMissingDirectory(t *testing.T) {
	store, err := New(Config{Dir: filepath.Join(t.TempDir(), "absent"), FilePrefix: testPrefix})
	require.NoError(t, err)

	entries, err := store.List()
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
