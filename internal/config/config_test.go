package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const testConfig = `remote:
  timeout: 5s
schema:
  sources:
    - http://localhost:8081/schema
spaces:
  - name: tasks
    single: http://localhost:8081/services/tasks/single
    collection: http://localhost:8081/services/tasks/collection
`

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	c, err := FromViper(v)
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, c.Timeout)
	require.Equal(t, ".js3", c.Suffix)
	require.Empty(t, c.Schemas)
	require.Empty(t, c.Spaces)
}

func TestReadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plaza.yml")
	require.NoError(t, os.WriteFile(file, []byte(testConfig), 0644))

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, ReadFile(v, file))
	c, err := FromViper(v)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, c.Timeout)
	require.Equal(t, ".js3", c.Suffix)
	require.Equal(t, []string{"http://localhost:8081/schema"}, c.Schemas)
	require.Equal(t, []Space{{
		Name:       "tasks",
		Single:     "http://localhost:8081/services/tasks/single",
		Collection: "http://localhost:8081/services/tasks/collection",
	}}, c.Spaces)

	require.Error(t, ReadFile(viper.New(), filepath.Join(t.TempDir(), "missing.yml")))
}

func TestEnv(t *testing.T) {
	t.Setenv("PLAZA_REMOTE_SUFFIX", ".json")
	v := viper.New()
	SetDefaults(v)
	c, err := FromViper(v)
	require.NoError(t, err)
	require.Equal(t, ".json", c.Suffix)
}

func TestInvalidSpace(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeySpaces, []map[string]interface{}{{"name": "x"}})
	_, err := FromViper(v)
	require.Error(t, err)
}
