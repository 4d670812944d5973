package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/deployctl/deployctl/internal/config"
	"github.com/deployctl/deployctl/internal/deploysdk"
	"github.com/deployctl/deployctl/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultAPI = deploysdk.DefaultBaseURL
	envPrefix  = "DENO_DEPLOY"
)

// settings are the values resolved from flags, DENO_DEPLOY_* variables and
// the deploy section of deno.json(c), in that order of precedence
type settings struct {
	API        string
	Token      string
	Project    string
	Root       string
	Entrypoint string
	ImportMap  string
	Include    []string
	Exclude    []string

	// ConfigPath is the config file in use, or where --save-config writes
	ConfigPath  string
	ConfigFound bool
}

// flagKeys maps viper keys to the flag names bound to them
var flagKeys = map[string]string{
	"api":        "api",
	"token":      "token",
	"project":    "project",
	"root":       "root",
	"import_map": "import-map",
	"include":    "include",
	"exclude":    "exclude",
}

func loadSettings(cmd *cobra.Command, args []string) (*settings, error) {
	v := viper.New()
	v.SetDefault("api", defaultAPI)
	v.SetDefault("root", ".")

	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root, err := utils.ResolvePath(v.GetString("root"))
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	s := &settings{Root: root}

	if err := mergeConfigFile(cmd, v, s); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		v.Set("entrypoint", args[0])
	}

	s.API = v.GetString("api")
	s.Token = v.GetString("token")
	s.Project = v.GetString("project")
	s.Entrypoint = v.GetString("entrypoint")
	s.ImportMap = v.GetString("import_map")
	s.Include = v.GetStringSlice("include")
	s.Exclude = v.GetStringSlice("exclude")

	return s, nil
}

// mergeConfigFile layers the deploy section of the config file under flags
// and env. An explicit --config must exist.
func mergeConfigFile(cmd *cobra.Command, v *viper.Viper, s *settings) error {
	var path string
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		resolved, err := utils.ResolvePath(f.Value.String())
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		path = resolved
	} else {
		found, err := config.Find(s.Root)
		if errors.Is(err, config.ErrNotFound) {
			s.ConfigPath = filepath.Join(s.Root, config.FileNames[0])
			return nil
		} else if err != nil {
			return err
		}
		path = found
	}

	file, err := config.Load(path)
	if err != nil {
		return err
	}
	s.ConfigPath = path
	s.ConfigFound = true
	slog.Debug("config loaded", "path", path, "project", file.Deploy.Project)

	values := map[string]any{}
	if file.Deploy.Project != "" {
		values["project"] = file.Deploy.Project
	}
	if file.Deploy.Entrypoint != "" {
		values["entrypoint"] = rebase(file.Dir(), s.Root, file.Deploy.Entrypoint)
	}
	if importMap := file.ImportMap(); importMap != "" {
		values["import_map"] = rebase(file.Dir(), s.Root, importMap)
	}
	if len(file.Deploy.Include) > 0 {
		values["include"] = file.Deploy.Include
	}
	if len(file.Deploy.Exclude) > 0 {
		values["exclude"] = file.Deploy.Exclude
	}

	return v.MergeConfigMap(values)
}

// rebase makes a path written relative to the config file relative to root
func rebase(configDir, root, p string) string {
	if filepath.IsAbs(p) || strings.Contains(p, "://") {
		return p
	}
	abs := filepath.Join(configDir, p)
	if rel, err := filepath.Rel(root, abs); err == nil {
		return rel
	}
	return abs
}
