package lifecycle

// Version is the lifecycle manager release, reported by the CLI version
// subcommand. Date-based to match the server script's own versioning.
const Version = "2026.01.03.01"
