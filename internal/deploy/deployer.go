package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/deployctl/deployctl/internal/deploysdk"
	"github.com/deployctl/deployctl/internal/manifest"
	"github.com/dustin/go-humanize"
)

// Options describe a single deployment
type Options struct {
	Project    string
	Root       string
	Entrypoint string
	ImportMap  string

	Include    []string
	Exclude    []string
	IgnoreFile string // defaults to .deployignore under Root

	Production bool
	// Static uploads the files under Root; otherwise only the entrypoint
	// URL is sent
	Static bool
	// DryRun stops after the manifest is built
	DryRun  bool
	EnvVars map[string]string

	// OnHash is called for every file added to the manifest
	OnHash func(manifest.Progress)
}

// Result of a Run
type Result struct {
	Manifest      *manifest.Manifest
	Summary       manifest.Summary
	Uploaded      int
	UploadedBytes int64
	Deployment    *deploysdk.Deployment // nil on dry runs
}

type Deployer struct {
	sdk *deploysdk.DeploySDK
}

func NewDeployer(sdk *deploysdk.DeploySDK) *Deployer {
	return &Deployer{sdk: sdk}
}

// Run builds the manifest, uploads what the server is missing and follows
// the deployment to completion
func (d *Deployer) Run(ctx context.Context, opts Options, onProgress ProgressFunc) (*Result, error) {
	if opts.Project == "" {
		return nil, deploysdk.ErrNoProject
	}
	if opts.Entrypoint == "" {
		return nil, ErrNoEntrypoint
	}
	if opts.Root == "" {
		opts.Root = "."
	}

	entrypointURL, err := SourceURL(opts.Root, opts.Entrypoint)
	if err != nil {
		return nil, fmt.Errorf("entrypoint: %w", err)
	}

	var importMapURL *string
	if opts.ImportMap != "" {
		u, err := SourceURL(opts.Root, opts.ImportMap)
		if err != nil {
			return nil, fmt.Errorf("import map: %w", err)
		}
		importMapURL = &u
	}

	if !opts.DryRun {
		project, err := d.sdk.Projects.Get(ctx, opts.Project)
		if deploysdk.IsNotFound(err) {
			return nil, fmt.Errorf("project %q not found: %w", opts.Project, err)
		} else if err != nil {
			return nil, err
		}
		slog.Debug("project found", "id", project.ID, "name", project.Name)
	}

	result := &Result{}
	request := &deploysdk.DeployRequest{
		URL:          entrypointURL,
		ImportMapURL: importMapURL,
		Production:   opts.Production,
	}

	var files [][]byte
	if opts.Static {
		m, index, err := d.buildManifest(ctx, opts)
		if err != nil {
			return nil, err
		}
		result.Manifest = m
		result.Summary = m.Summary()

		slog.Info("manifest ready",
			"files", result.Summary.Files,
			"dirs", result.Summary.Directories,
			"symlinks", result.Summary.Symlinks,
			"size", humanize.Bytes(result.Summary.Bytes),
		)

		if opts.DryRun {
			return result, nil
		}

		needed, err := d.sdk.Assets.Negotiate(ctx, opts.Project, m)
		if err != nil {
			return nil, err
		}

		files, err = ResolveAssets(needed, index)
		if err != nil {
			return nil, err
		}

		result.Uploaded = len(files)
		for _, f := range files {
			result.UploadedBytes += int64(len(f))
		}
		slog.Info("assets negotiated",
			"blobs", result.Summary.UniqueBlobs,
			"upload", len(files),
			"size", humanize.Bytes(uint64(result.UploadedBytes)),
		)

		request.Manifest = m
	} else if opts.DryRun {
		return result, nil
	}

	stream, err := d.sdk.Deployments.CreateWithAssets(ctx, opts.Project, request, files)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	deployment, err := Drive(stream, onProgress)
	if err != nil {
		return nil, err
	}
	slog.Debug("deployment created", "id", deployment.ID, "domains", deployment.Domains())

	if len(opts.EnvVars) > 0 {
		deployment, err = d.applyEnvVars(ctx, deployment, opts)
		if err != nil {
			return nil, err
		}
	}

	result.Deployment = deployment
	return result, nil
}

func (d *Deployer) buildManifest(ctx context.Context, opts Options) (*manifest.Manifest, manifest.HashIndex, error) {
	matcher, err := manifest.NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return nil, nil, err
	}

	ignoreFile := opts.IgnoreFile
	if ignoreFile == "" {
		ignoreFile = filepath.Join(opts.Root, manifest.DefaultIgnoreFile)
	}
	found, err := matcher.LoadIgnoreFile(ignoreFile)
	if err != nil {
		return nil, nil, err
	}
	if !found && opts.IgnoreFile != "" {
		return nil, nil, fmt.Errorf("ignore file %q not found", opts.IgnoreFile)
	}

	buildOpts := []manifest.Option{
		manifest.WithContext(ctx),
		manifest.WithMatcher(matcher),
	}
	if opts.OnHash != nil {
		buildOpts = append(buildOpts, manifest.WithProgress(opts.OnHash))
	}

	return manifest.Build(opts.Root, buildOpts...)
}

// applyEnvVars re-creates the deployment with the requested environment and
// removes the intermediate one. The returned deployment replaces the
// original, domains included.
func (d *Deployer) applyEnvVars(ctx context.Context, original *deploysdk.Deployment, opts Options) (*deploysdk.Deployment, error) {
	params := &deploysdk.RedeployParams{EnvVars: opts.EnvVars}
	if opts.Production {
		params.Production = &opts.Production
	}

	redeployed, err := d.sdk.Deployments.Redeploy(ctx, original.ID, params)
	if err != nil {
		return nil, fmt.Errorf("apply env vars: %w", err)
	}

	if err := d.sdk.Deployments.Delete(ctx, original.ID); err != nil {
		return nil, fmt.Errorf("delete intermediate deployment %s: %w", original.ID, err)
	}

	slog.Debug("env vars applied", "deployment", redeployed.ID, "replaced", original.ID, "vars", len(opts.EnvVars))
	return redeployed, nil
}
