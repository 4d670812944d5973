package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/deployctl/deployctl/internal/config"
	"github.com/deployctl/deployctl/internal/deploy"
	"github.com/deployctl/deployctl/internal/deploysdk"
	"github.com/deployctl/deployctl/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDeployCmd())
}

func newDeployCmd() *cobra.Command {
	var (
		production bool
		static     bool
		dryRun     bool
		saveConfig bool
		ignoreFile string
		envPairs   []string
		envFiles   []string
	)

	deployCmd := &cobra.Command{
		Use:   "deploy [entrypoint]",
		Short: "Deploy a script with static files to Deno Deploy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, args)
			if err != nil {
				return err
			}

			envVars, err := loadEnvVars(envPairs, envFiles)
			if err != nil {
				return err
			}

			if s.Project == "" {
				return fmt.Errorf("%w: pass --project or set it in %s", deploysdk.ErrNoProject, s.ConfigPath)
			}
			if s.Entrypoint == "" {
				return fmt.Errorf("%w: pass it as an argument or set it in %s", deploy.ErrNoEntrypoint, s.ConfigPath)
			}

			var sdk *deploysdk.DeploySDK
			if !dryRun {
				sdk, err = deploysdk.New(&deploysdk.Config{BaseURL: s.API, Token: s.Token})
				if err != nil {
					return err
				}
				defer sdk.Close()
			}

			cmd.SilenceUsage = true

			rep := newReporter(cmd.ErrOrStderr())
			result, err := deploy.NewDeployer(sdk).Run(cmd.Context(), deploy.Options{
				Project:    s.Project,
				Root:       s.Root,
				Entrypoint: s.Entrypoint,
				ImportMap:  s.ImportMap,
				Include:    s.Include,
				Exclude:    s.Exclude,
				IgnoreFile: ignoreFile,
				Production: production,
				Static:     static,
				DryRun:     dryRun,
				EnvVars:    envVars,
				OnHash:     rep.Hash,
			}, rep.Progress)
			rep.Finish()
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), s, result, dryRun)

			if saveConfig {
				if err := config.Save(s.ConfigPath, config.Deploy{
					Project:    s.Project,
					Entrypoint: s.Entrypoint,
					ImportMap:  s.ImportMap,
					Include:    s.Include,
					Exclude:    s.Exclude,
				}); err != nil {
					return err
				}
				slog.Info("config saved", "path", s.ConfigPath)
			}

			return nil
		},
	}

	flags := deployCmd.Flags()
	flags.SortFlags = false
	flags.StringP("project", "p", "", "Project name or id")
	flags.String("token", "", "Access token (default $DENO_DEPLOY_TOKEN)")
	flags.String("root", ".", "Directory whose files are deployed")
	flags.String("config", "", "Path to deno.json(c) (default: looked up in --root)")
	flags.StringSlice("include", nil, "Only upload files matching these patterns")
	flags.StringSlice("exclude", nil, "Never upload files matching these patterns")
	flags.StringVar(&ignoreFile, "ignore-file", "", "Gitignore style file of exclusions (default: "+manifest.DefaultIgnoreFile+" in --root)")
	flags.String("import-map", "", "Import map file or URL")
	flags.BoolVar(&production, "prod", false, "Create a production deployment")
	flags.BoolVar(&static, "static", true, "Upload the files under --root")
	flags.BoolVar(&dryRun, "dry-run", false, "Build the manifest without deploying")
	flags.StringArrayVar(&envPairs, "env", nil, "Environment variable KEY=VALUE, may be repeated")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Read environment variables from a dotenv file")
	flags.BoolVar(&saveConfig, "save-config", false, "Write the resolved settings to the config file")

	return deployCmd
}

func printResult(out io.Writer, s *settings, result *deploy.Result, dryRun bool) {
	sum := result.Summary
	if result.Manifest != nil {
		fmt.Fprintf(out, "%s %d files, %d directories, %d symlinks, %s\n",
			gray.Render("manifest"), sum.Files, sum.Directories, sum.Symlinks, humanize.Bytes(sum.Bytes))
	}

	if dryRun {
		fmt.Fprintln(out, yellow.Render("dry run: nothing was deployed to "+s.Project))
		return
	}

	if result.Manifest != nil {
		fmt.Fprintf(out, "%s %d new of %d unique files, %s\n",
			gray.Render("uploaded"), result.Uploaded, sum.UniqueBlobs, humanize.Bytes(uint64(result.UploadedBytes)))
	}

	fmt.Fprintf(out, "%s %s\n", green.Render("deployment complete"), bold.Render(result.Deployment.ID))
	for _, domain := range result.Deployment.Domains() {
		fmt.Fprintf(out, "  %s\n", cyan.Render("https://"+domain))
	}
}
