package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolve runs the deploy command with args and returns the settings it saw
func resolve(t *testing.T, args ...string) *settings {
	t.Helper()

	var got *settings
	deployCmd := newDeployCmd()
	deployCmd.RunE = func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd, args)
		got = s
		return err
	}

	root := newTestRoot(deployCmd)
	root.SetArgs(append([]string{"deploy"}, args...))
	require.NoError(t, root.Execute())
	require.NotNil(t, got)
	return got
}

func clearDeployEnv(t *testing.T) {
	for _, key := range []string{"API", "TOKEN", "PROJECT", "ROOT", "ENTRYPOINT", "IMPORT_MAP", "INCLUDE", "EXCLUDE"} {
		t.Setenv(envPrefix+"_"+key, "")
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	clearDeployEnv(t)
	root := t.TempDir()

	s := resolve(t, "--root", root)
	assert.Equal(t, defaultAPI, s.API)
	assert.Equal(t, root, s.Root)
	assert.Empty(t, s.Project)
	assert.Empty(t, s.Entrypoint)
	assert.False(t, s.ConfigFound)
	assert.Equal(t, filepath.Join(root, "deno.json"), s.ConfigPath)
}

func TestLoadSettings_ConfigFile(t *testing.T) {
	clearDeployEnv(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"deno.jsonc": `{
  // deploy settings
  "deploy": {
    "project": "from-file",
    "entrypoint": "main.ts",
    "exclude": ["dist"],
  },
  "importMap": "./import_map.json"
}`,
	})

	s := resolve(t, "--root", root)
	assert.True(t, s.ConfigFound)
	assert.Equal(t, filepath.Join(root, "deno.jsonc"), s.ConfigPath)
	assert.Equal(t, "from-file", s.Project)
	assert.Equal(t, "main.ts", s.Entrypoint)
	assert.Equal(t, "import_map.json", s.ImportMap)
	assert.Equal(t, []string{"dist"}, s.Exclude)
}

func TestLoadSettings_Precedence(t *testing.T) {
	clearDeployEnv(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"deno.json": `{"deploy": {"project": "from-file", "entrypoint": "main.ts"}}`,
	})

	t.Setenv("DENO_DEPLOY_PROJECT", "from-env")
	t.Setenv("DENO_DEPLOY_TOKEN", "env-token")

	s := resolve(t, "--root", root)
	assert.Equal(t, "from-env", s.Project)
	assert.Equal(t, "env-token", s.Token)

	s = resolve(t, "--root", root, "--project", "from-flag", "--token", "flag-token", "server.ts")
	assert.Equal(t, "from-flag", s.Project)
	assert.Equal(t, "flag-token", s.Token)
	assert.Equal(t, "server.ts", s.Entrypoint)
}

func TestLoadSettings_APIFromEnv(t *testing.T) {
	clearDeployEnv(t)
	t.Setenv("DENO_DEPLOY_API", "http://127.0.0.1:9000/api")

	s := resolve(t, "--root", t.TempDir())
	assert.Equal(t, "http://127.0.0.1:9000/api", s.API)

	s = resolve(t, "--root", t.TempDir(), "--api", "http://127.0.0.1:9001")
	assert.Equal(t, "http://127.0.0.1:9001", s.API)
}

func TestLoadSettings_ExplicitConfigRebasesPaths(t *testing.T) {
	clearDeployEnv(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config/deno.json": `{"deploy": {"project": "p1", "entrypoint": "../src/main.ts"}}`,
	})

	s := resolve(t, "--root", root, "--config", filepath.Join(root, "config", "deno.json"))
	assert.Equal(t, filepath.Join(root, "config", "deno.json"), s.ConfigPath)
	assert.Equal(t, filepath.Join("src", "main.ts"), s.Entrypoint)
}

func TestLoadSettings_MissingExplicitConfig(t *testing.T) {
	clearDeployEnv(t)

	deployCmd := newDeployCmd()
	deployCmd.RunE = func(cmd *cobra.Command, args []string) error {
		_, err := loadSettings(cmd, args)
		return err
	}
	root := newTestRoot(deployCmd)
	root.SetArgs([]string{"deploy", "--root", t.TempDir(), "--config", filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, root.Execute())
}

func TestRebase(t *testing.T) {
	root := filepath.FromSlash("/work/app")
	assert.Equal(t, "main.ts", rebase(root, root, "main.ts"))
	assert.Equal(t, filepath.Join("web", "main.ts"), rebase(filepath.Join(root, "web"), root, "main.ts"))
	assert.Equal(t, "https://example.com/mod.ts", rebase(root, root, "https://example.com/mod.ts"))
}

func TestLoadSettings_RootMustExist(t *testing.T) {
	clearDeployEnv(t)

	deployCmd := newDeployCmd()
	deployCmd.RunE = func(cmd *cobra.Command, args []string) error {
		_, err := loadSettings(cmd, args)
		return err
	}
	root := newTestRoot(deployCmd)
	root.SetArgs([]string{"deploy", "--root", filepath.Join(t.TempDir(), "missing")})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}
