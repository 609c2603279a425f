package constants

// DefaultEnvPath is the default path to the .env file
const DefaultEnvPath = "./.env"

// DefaultConfigPath is the default path to the config.toml file
const DefaultConfigPath = "./config.toml"

// DefaultStoragePath is the default persistent store location
const DefaultStoragePath = "~/.ledgercron/ledger.db"
