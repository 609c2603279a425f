package constants

// DefaultVersion is the default version of the application
const DefaultVersion = "0.1.0-dev"

// DefaultBuildTime is the default build time when not provided at build time
const DefaultBuildTime = "unknown"

// DefaultGitCommit is the default git commit hash when not provided at build time
const DefaultGitCommit = "unknown"

// DefaultGoVersion is the default Go version when not provided at build time
const DefaultGoVersion = "unknown"

// DefaultServerURL is the ledger server used when none is configured
const DefaultServerURL = "http://localhost:8000"

// DefaultServerTimeoutSeconds bounds one ledger request
const DefaultServerTimeoutSeconds = 30

// DefaultLockTimeoutSeconds bounds acquisition of the store lock
const DefaultLockTimeoutSeconds = 10

// MinGracePeriodSeconds is both the default and the floor of the shutdown grace period
const MinGracePeriodSeconds = 5

// DefaultMetricsListen is the metrics listen address
const DefaultMetricsListen = "127.0.0.1:9464"
