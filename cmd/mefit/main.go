// Mefit inspects and patches Mac firmware ROM dumps.
//
// It validates Intel and T2 SPI flash images, decodes the Fsys and SCfg
// stores that carry the serial number, and builds patched copies with the
// Fsys CRC kept consistent. Source images are never modified: every patch
// is written to a new timestamped file and verified by reading it back.
//
// Usage:
//
//	mefit [command] [flags]
//
// See 'mefit --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mefit/internal/config"
	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/logging"
	"github.com/muurk/mefit/internal/rom"
	"github.com/muurk/mefit/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath        string
	logLevel          string
	noDescriptorCheck bool
	noSectionCheck    bool
	buildsDir         string
	assumeYes         bool
)

// settings is resolved once per invocation in the root pre-run hook.
var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:   "mefit",
	Short: "Mac EFI firmware inspection and patching utility",
	Long: `Inspect and patch Mac firmware ROM dumps.

Supports Intel flash images (Fsys store) and T2 SOCROM images (SCfg store):
  - Validate image size, flash signature and store presence
  - Show serial number, hardware code, order number and CRC state
  - Export the Fsys store, or replace it from a donor region
  - Rewrite the serial number with the CRC recomputed
  - Repair a stale Fsys CRC

Patched images are written to the builds directory; the input is never
modified. Settings are read from the config file (see --config).`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	Example: `  # Show everything mefit can decode from a dump
  mefit info MBP151.rom

  # Rewrite the serial number
  mefit set-serial MBP151.rom --serial C02XXXXXXXXX

  # Swap in the Fsys store from another dump
  mefit replace-fsys MBP151.rom --donor donor_fsys.bin`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $"+config.PathEnvVar+" or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $"+logging.LogLevelEnvVar+", silent when unset)")
	rootCmd.PersistentFlags().BoolVar(&noDescriptorCheck, "no-descriptor-check", false, "Do not require the flash descriptor or SOCROM signature")
	rootCmd.PersistentFlags().BoolVar(&noSectionCheck, "no-section-check", false, "Do not require the Fsys or SCfg store")
	rootCmd.PersistentFlags().StringVar(&buildsDir, "builds-dir", "", "Directory for patched images (overrides paths.builds_dir)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt before writing")

	rootCmd.AddCommand(versionCmd)
}

// setup initializes logging and resolves settings from the config file and flags.
func setup(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	var (
		loaded *config.Settings
		err    error
	)
	if configPath != "" {
		loaded, err = config.Load(configPath)
	} else {
		loaded, err = config.LoadSettings()
	}
	if err != nil {
		return err
	}

	// Copy so flag overrides don't leak into the shared instance
	s := *loaded
	if noDescriptorCheck {
		s.Validation.CheckDescriptor = false
	}
	if noSectionCheck {
		s.Validation.CheckSection = false
	}
	if buildsDir != "" {
		s.Paths.BuildsDir = buildsDir
	}
	if assumeYes {
		s.Build.Confirm = false
	}
	settings = &s
	return nil
}

// romOptions builds loading options from the resolved settings.
func romOptions() (rom.Options, error) {
	opts := rom.Options{Validation: settings.ValidationOptions()}
	if settings.Paths.CatalogFile != "" {
		catalog, err := firmware.LoadCatalogWithModels(settings.Paths.CatalogFile)
		if err != nil {
			return rom.Options{}, err
		}
		opts.Catalog = catalog
	}
	return opts, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "mefit %s (commit: %s) %s %s\n", info.Version, info.Commit, info.GoVersion, info.Platform)
	},
}
