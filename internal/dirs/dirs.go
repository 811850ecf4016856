package dirs

// StateDir is the root directory for all devrun runtime state files,
// relative to the project working directory.
const StateDir = "._devrun_state"

// ManifestFile is the default manifest name in the project root.
const ManifestFile = "devrun.yaml"

// ConfigDir is the alternative directory holding the manifest,
// relative to the project working directory.
const ConfigDir = ".devrun"

// OverridesFile is the path to the optional machine-local overrides file,
// relative to the project working directory.
const OverridesFile = ".devrun.overrides.yaml"
