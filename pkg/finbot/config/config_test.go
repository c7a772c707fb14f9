package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FINBOT_ANTHROPIC_API_KEY", "sk-test")

	env, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "sk-test", env.Anthropic.APIKey)
	assert.Equal(t, 1024, env.Anthropic.MaxTokens)
	assert.Equal(t, StoreMemory, env.Store.Kind)
	assert.Equal(t, 10, env.Conversation.HistorySize)
	assert.Equal(t, 30*time.Second, env.Conversation.NodeTimeout)
	assert.Equal(t, 2*time.Minute, env.Conversation.TurnTimeout)
	assert.Equal(t, 3, env.Conversation.SearchTopK)
	assert.Equal(t, "finbot:", env.Redis.Prefix)
	assert.Equal(t, 168*time.Hour, env.Redis.SessionTTL)
	assert.Equal(t, "info", env.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FINBOT_STORE", "sqlite")
	t.Setenv("FINBOT_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("FINBOT_HISTORY_SIZE", "4")
	t.Setenv("FINBOT_NODE_TIMEOUT", "5s")
	t.Setenv("FINBOT_LOG_FORMAT", "json")

	env, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, env.Store.Kind)
	assert.Equal(t, "/tmp/x.db", env.Store.SQLitePath)
	assert.Equal(t, 4, env.Conversation.HistorySize)
	assert.Equal(t, 5*time.Second, env.Conversation.NodeTimeout)
	assert.Equal(t, "json", env.Log.Format)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINBOT_MODEL=claude-test\n"), 0o600))
	// godotenv never overrides variables that are already set; register
	// cleanup so the value does not leak into other tests.
	t.Setenv("FINBOT_MODEL", "")
	require.NoError(t, os.Unsetenv("FINBOT_MODEL"))

	env, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "claude-test", env.Anthropic.Model)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("FINBOT_STORE", "etcd")
	t.Setenv("FINBOT_HISTORY_SIZE", "0")

	_, err := Load("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "FINBOT_STORE")
	assert.Contains(t, err.Error(), "FINBOT_HISTORY_SIZE")
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("FINBOT_TURN_TIMEOUT", "soon")

	_, err := Load("")

	assert.Error(t, err)
}

func TestRedisConfig_NewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second}.NewClient(t.Context())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestRedisConfig_NewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond}.NewClient(t.Context())

	assert.Error(t, err)
}

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()

	for _, name := range []string{"intent", "recommend_category", "slot_category", "feedback"} {
		assert.NotEmpty(t, tables.LabelSets[name].Labels, name)
	}
	intents := tables.LabelSets["intent"].Labels
	assert.Equal(t, "chat", intents[len(intents)-1].Name)

	for _, category := range []string{"fixed_deposit", "installment_deposit", "jeonse_loan"} {
		assert.NotEmpty(t, tables.Slots[category].Fields, category)
		assert.NotEmpty(t, tables.Slots[category].Rank, category)
	}
	assert.Equal(t, "jeonse_loan", tables.Categories["전세자금대출"])
}

func TestDefaultTables_OptionalFields(t *testing.T) {
	want := map[string][]string{
		"fixed_deposit":       {"우대조건", "최고한도", "저축금리유형명", "최고우대금리"},
		"installment_deposit": {"우대조건", "최고한도", "적립유형명", "저축금리유형명", "최고우대금리"},
		"jeonse_loan":         {"대출한도"},
	}
	tables := DefaultTables()
	for category, fields := range want {
		var optional []string
		for _, f := range tables.Slots[category].Fields {
			if f.Optional {
				optional = append(optional, f.Name)
			}
		}
		assert.Equal(t, fields, optional, category)
	}
}

func TestDefaultTables_ReturnsCopies(t *testing.T) {
	a := DefaultTables()
	a.Categories["정기예금"] = "changed"

	assert.Equal(t, "fixed_deposit", DefaultTables().Categories["정기예금"])
}

func TestLoadTables_EmptyPath(t *testing.T) {
	tables, err := LoadTables("")

	require.NoError(t, err)
	assert.Equal(t, DefaultTables(), tables)
}

func TestLoadTables_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `
label_sets:
  feedback:
    labels:
      - name: yes
        synonyms: [ok, 좋아요]
      - name: no
prompts:
  greeting: 반가워요
categories:
  주택담보대출: jeonse_loan
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tables, err := LoadTables(path)

	require.NoError(t, err)
	feedback := tables.LabelSets["feedback"].Labels
	require.Len(t, feedback, 2)
	assert.Equal(t, []string{"ok", "좋아요"}, feedback[0].Synonyms)
	assert.Empty(t, feedback[1].Synonyms)

	// Untouched entries keep their defaults.
	assert.Equal(t, DefaultTables().LabelSets["intent"], tables.LabelSets["intent"])
	assert.Equal(t, "fixed_deposit", tables.Categories["정기예금"])
	assert.Equal(t, "jeonse_loan", tables.Categories["주택담보대출"])
	assert.Equal(t, "반가워요", tables.Prompts["greeting"])
}

func TestLoadTables_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	content := `{"slots": {"jeonse_loan": {"fields": [{"name": "대출액", "kind": "money"}]}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tables, err := LoadTables(path)

	require.NoError(t, err)
	require.Len(t, tables.Slots["jeonse_loan"].Fields, 1)
	assert.Equal(t, "money", tables.Slots["jeonse_loan"].Fields[0].Kind)
	assert.Len(t, tables.Slots["fixed_deposit"].Fields, 7)
}

func TestLoadTables_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unsupported extension", "tables.toml", "x = 1", "unsupported tables file extension"},
		{"invalid yaml", "tables.yaml", "label_sets: [", "parse yaml"},
		{"invalid json", "tables.json", "{", "parse json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadTables(path)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadTables(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read tables file")
}
