package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outlookmcp/internal/tokenstore"
)

type mapLoader map[string]*tokenstore.TokenRecord

func (m mapLoader) Load(identity string) (*tokenstore.TokenRecord, bool) {
	r, ok := m[identity]
	return r, ok
}

func TestProbe_Check(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := mapLoader{
		"valid":    {AccessToken: "at", ExpiresAt: now.Add(time.Millisecond).UnixMilli()},
		"boundary": {AccessToken: "at", ExpiresAt: now.UnixMilli()},
		"expired":  {AccessToken: "at", ExpiresAt: now.Add(-time.Hour).UnixMilli()},
		"no-token": {ExpiresAt: now.Add(time.Hour).UnixMilli()},
	}
	probe := NewProbe(store, func() time.Time { return now })

	tests := []struct {
		identity string
		expected Status
	}{
		{"", NotConfigured},
		{"missing", NoRecord},
		{"valid", Valid},
		{"boundary", Expired},
		{"expired", Expired},
		{"no-token", NoRecord},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			assert.Equal(t, tt.expected, probe.Check(tt.identity))
		})
	}
}

func TestProbe_InspectReturnsRecord(t *testing.T) {
	now := time.Now()
	record := &tokenstore.TokenRecord{AccessToken: "at", ExpiresAt: now.Add(time.Hour).UnixMilli()}
	probe := NewProbe(mapLoader{"alice": record}, func() time.Time { return now })

	report := probe.Inspect("alice")
	assert.Equal(t, Valid, report.Status)
	assert.Same(t, record, report.Record)

	assert.Nil(t, probe.Inspect("bob").Record)
}

func TestProbe_EmptyAccessTokenIsNoRecord(t *testing.T) {
	now := time.Now()
	store := mapLoader{
		"alice": {RefreshToken: "rt", ExpiresAt: now.Add(time.Hour).UnixMilli()},
		"bob":   {ExpiresAt: now.Add(-time.Hour).UnixMilli()},
	}
	probe := NewProbe(store, func() time.Time { return now })

	for _, id := range []string{"alice", "bob"} {
		report := probe.Inspect(id)
		assert.Equal(t, NoRecord, report.Status, id)
		assert.Nil(t, report.Record, id)
	}
}

func TestProbe_WithTokenStore(t *testing.T) {
	store, err := tokenstore.New(tokenstore.Config{Dir: t.TempDir(), FilePrefix: ".outlook-mcp-tokens-"})
	assert.NoError(t, err)

	probe := NewProbe(store, nil)
	assert.Equal(t, NoRecord, probe.Check("alice"))

	assert.NoError(t, store.Save("alice", tokenstore.NewTestRecord(time.Now())))
	assert.Equal(t, Valid, probe.Check("alice"))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "NotConfigured", NotConfigured.String())
	assert.Equal(t, "NoRecord", NoRecord.String())
	assert.Equal(t, "Expired", Expired.String())
	assert.Equal(t, "Valid", Valid.String())
	assert.Equal(t, "Unknown", Status(42).String())
}
