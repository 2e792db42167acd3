package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/neverl0se/forgeModsConflictMediator/internal/analysis"
	"github.com/neverl0se/forgeModsConflictMediator/internal/buildconfig"
	"github.com/neverl0se/forgeModsConflictMediator/internal/catalog"
	"github.com/neverl0se/forgeModsConflictMediator/internal/config"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type globalOptions struct {
	registryPath   string
	componentsFile string
	components     []string
	namespace      string
	jsonOutput     bool
	noColor        bool
	verbose        bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "mediatorctl",
		Short:        "Inspect load failures and manage the conflict disablement registry",
		Version:      buildconfig.Version(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("registry") {
				opts.registryPath = config.RegistryPath()
			}
			if !cmd.Flags().Changed("components-file") {
				opts.componentsFile = config.ComponentsFile()
			}
			if !cmd.Flags().Changed("namespace") {
				opts.namespace = config.PatchNamespace()
			}
			if opts.noColor {
				color.NoColor = true
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.registryPath, "registry", "", "disablement registry file (default $REGISTRY_PATH)")
	pf.StringVar(&opts.componentsFile, "components-file", "", "YAML manifest of loaded components (default $COMPONENTS_FILE)")
	pf.StringSliceVar(&opts.components, "component", nil, "loaded component id, repeatable; attribution priority follows order")
	pf.StringVar(&opts.namespace, "namespace", analysis.DefaultPatchNamespace, "package segment marking patch classes")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of a report")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log mediation details to stderr")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newMediateCmd(opts),
		newRegistryCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *globalOptions) logger(w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if o.verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// openRegistry loads the registry file. The registry is returned even when
// loading fails; it is then empty.
func (o *globalOptions) openRegistry(logger *zap.Logger) (*registry.Registry, error) {
	reg := registry.New(o.registryPath, logger)
	return reg, reg.Load()
}

// catalog merges the manifest and --component flags into one source.
func (o *globalOptions) catalog(reg catalog.ArtifactRegistrar) (*catalog.Catalog, error) {
	c := catalog.New()
	if o.componentsFile != "" {
		m, err := catalog.LoadManifest(o.componentsFile)
		if err != nil {
			return nil, err
		}
		m.Apply(c, reg)
	}
	for _, id := range o.components {
		c.Add(id)
	}
	return c, nil
}

func (o *globalOptions) analyzer(components domain.ComponentSource, logger *zap.Logger) *analysis.Analyzer {
	an := analysis.NewAnalyzer(analysis.NewExtractor(o.namespace), components, logger)
	an.SetMaxCauseDepth(config.MaxCauseDepth())
	an.SetIgnoredOwners(config.IgnoredOwners())
	if markers := config.DuplicateMarkers(); len(markers) > 0 {
		an.SetDuplicateMarkers(markers)
	}
	return an
}

// readFailure loads a failure from path ("-" is stdin). JSON input is decoded
// as a descriptor; anything else is parsed as a textual stack dump.
func readFailure(cmd *cobra.Command, path string) (*domain.FailureDescriptor, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read failure: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("read failure: %s is empty", path)
	}
	if trimmed[0] == '{' {
		var f domain.FailureDescriptor
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decode failure descriptor: %w", err)
		}
		return &f, nil
	}
	return analysis.ParseTraceText(string(data)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
