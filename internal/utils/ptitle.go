package utils

const procName = "xkeycursor"

// IdleTitle is the process title while waiting for the hotkey.
func IdleTitle() string {
	return procName + ": idle"
}

// DriveTitle is the process title while a drive session runs.
func DriveTitle(sessionID string) string {
	return procName + ": drive " + sessionID
}
