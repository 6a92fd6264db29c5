package bot

// Status is the lifecycle state of the Discord connection. It is process
// state only and resets to StatusNotRunning on startup.
type Status int

const (
	StatusNotRunning Status = iota
	StatusLoadError
	StatusLoading
	StatusRunning
	StatusShuttingDown
	StatusInvalidToken
)

type statusInfo struct {
	name      string
	canStart  bool
	canStop   bool
	notifyOps bool
	message   string
}

var statusTable = [...]statusInfo{
	StatusNotRunning: {
		name:      "not_running",
		canStart:  true,
		notifyOps: true,
		message:   "Discord bot is not currently running.",
	},
	StatusLoadError: {
		name:      "load_error",
		canStart:  true,
		notifyOps: true,
		message:   "An error occurred while loading the discord bot, check the log for details.",
	},
	StatusLoading: {
		name:    "loading",
		message: "Discord bot is loading.",
	},
	StatusRunning: {
		name:    "running",
		canStop: true,
		message: "Discord bot is running.",
	},
	StatusShuttingDown: {
		name:    "shutting_down",
		message: "Discord bot is shutting down.",
	},
	StatusInvalidToken: {
		name:      "invalid_token",
		canStart:  true,
		notifyOps: true,
		message:   "Discord bot token is invalid, make sure the token is properly set in the config file.",
	},
}

func (s Status) info() statusInfo {
	if int(s) < 0 || int(s) >= len(statusTable) {
		return statusTable[StatusNotRunning]
	}
	return statusTable[s]
}

// CanStart indicates if the bot can be started from this state
func (s Status) CanStart() bool {
	return s.info().canStart
}

// CanStop indicates if the bot can be stopped from this state
func (s Status) CanStop() bool {
	return s.info().canStop
}

// NotifyOps indicates if the status message should be shown to operators
// when they join the game server
func (s Status) NotifyOps() bool {
	return s.info().notifyOps
}

// Message is a human-readable description of this state
func (s Status) Message() string {
	return s.info().message
}

func (s Status) String() string {
	return s.info().name
}
