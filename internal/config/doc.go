// Package config loads the read-only mefit settings file.
//
// The file holds validation limits, check bypasses and output directories.
// mefit never writes it; edit it by hand. A missing file yields the
// defaults.
//
// # Configuration File Location
//
// The file is looked up in this order:
//   - the path passed to Load (the --config flag)
//   - $MEFIT_CONFIG
//   - Linux: $XDG_CONFIG_HOME/mefit/config.yaml or $HOME/.config/mefit/config.yaml
//   - macOS: $HOME/.config/mefit/config.yaml
//   - Windows: %LOCALAPPDATA%\mefit\config.yaml
//
// # Example
//
//	version: 1
//	validation:
//	  family: auto
//	  min_size: 0x100000
//	  max_size: 0x2000000
//	  check_descriptor: true
//	  check_section: true
//	paths:
//	  builds_dir: builds
//	  backups_dir: backups
//	  catalog_file: ~/.config/mefit/models.yaml
//	build:
//	  backup_original: true
//	  confirm: true
package config
