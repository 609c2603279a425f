package constants

// CLI messages printed by the ledgercron commands.

// Configuration messages
const (
	// MsgConfigLoadFailed is printed when the configuration file cannot be loaded.
	MsgConfigLoadFailed = "❌ Failed to load configuration: %v\n"

	// MsgConfigInvalid is the header printed before validation errors.
	MsgConfigInvalid = "❌ Configuration validation failed:\n"

	// MsgConfigInvalidItem formats one validation error.
	MsgConfigInvalidItem = "  - %v\n"

	// MsgLoggerFailed is printed when the logger cannot be created.
	MsgLoggerFailed = "❌ Failed to initialize logger: %v\n"
)

// Task list messages
const (
	// MsgTasksValid is printed after a successful task list validation.
	MsgTasksValid = "✅ %d task(s) valid\n"

	// MsgTaskLine formats one task: index, schedule, amount, symbol, recipient, next firing.
	MsgTaskLine = "  #%d  %-20s  %s %s -> %s  next: %s\n"
)

// Record messages
const (
	// MsgNoRecords is printed when a listing is empty.
	MsgNoRecords = "No records found\n"

	// MsgRecordNotFound is returned when a key has no record.
	MsgRecordNotFound = "no record under %q"

	// MsgRecordUndecodable marks a stored value that failed to decode.
	MsgRecordUndecodable = "%s\t<undecodable: %v>\n"
)
