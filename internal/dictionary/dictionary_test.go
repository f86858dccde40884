package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

type stubFetcher struct {
	body string
	err  error
}

func (s stubFetcher) FetchJSON(_ context.Context, target string, v any) (*plugin.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := json.Unmarshal([]byte(s.body), v); err != nil {
		return nil, err
	}
	return &plugin.Response{URL: target, Relay: "stub"}, nil
}

func TestLoader_Load(t *testing.T) {
	l := NewLoader(stubFetcher{body: `{"Dirt":"土","Air":"空気","Stub":null,"Count":3}`}, "", nil)
	assert.Equal(t, DefaultURL, l.URL())

	m, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Map{"Dirt": "土", "Air": "空気", "Stub": "", "Count": "3"}, m)
	assert.True(t, m.Has("Stub"))
	assert.False(t, m.Has("Stone"))
	assert.Equal(t, []string{"Air", "Count", "Dirt", "Stub"}, m.Keys())
}

func TestLoader_RelaysExhausted(t *testing.T) {
	l := NewLoader(stubFetcher{err: &plugin.ProxyExhaustedError{Target: DefaultURL}}, "", nil)

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, plugin.StageDictionary, plugin.StageOf(err))
	assert.True(t, errors.Is(err, plugin.ErrProxyExhausted))
}

func TestLoader_NotAnObject(t *testing.T) {
	_, err := NewLoader(stubFetcher{body: `["Dirt"]`}, "https://wiki.test/x.json", nil).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, plugin.StageDictionary, plugin.StageOf(err))

	_, err = NewLoader(stubFetcher{body: `null`}, "https://wiki.test/x.json", nil).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, plugin.StageDictionary, plugin.StageOf(err))
}

func TestParseAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Stone":"石"}`), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Map{"Stone": "石"}, m)

	_, err = Parse([]byte("<html>"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Dirt":"土","Air":null}`), 0o644))

	m, err := FileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Map{"Dirt": "土", "Air": ""}, m)

	_, err = FileSource(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	assert.Equal(t, plugin.StageDictionary, plugin.StageOf(err))
}
