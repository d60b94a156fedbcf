package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		wantKeys  map[string]string
		wantEmpty []string
	}{
		{
			name:     "request and session",
			ctx:      WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1"),
			wantKeys: map[string]string{"request_id": "req-1", "session_id": "sess-1"},
		},
		{
			name:      "request only",
			ctx:       WithRequestID(context.Background(), "req-2"),
			wantKeys:  map[string]string{"request_id": "req-2"},
			wantEmpty: []string{"session_id"},
		},
		{
			name:      "no values",
			ctx:       context.Background(),
			wantEmpty: []string{"request_id", "session_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(tt.ctx).Msg("test")

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			for k, v := range tt.wantKeys {
				assert.Equal(t, v, entry[k])
			}
			for _, k := range tt.wantEmpty {
				assert.NotContains(t, entry, k)
			}
		})
	}
}

func TestNew(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "writeback.log")

	l, closeFn, err := New("warn", file)
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Str("k", "v").Msg("kept")
	closeFn()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"k":"v"`)

	_, _, err = New("loud", "")
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(zerolog.New(&buf))

	l := Component("planner")
	l.Info().Msg("hi")
	assert.Contains(t, buf.String(), `"cmp":"planner"`)
}
