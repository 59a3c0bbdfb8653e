package codec

const (
	usageAuth   = "/auth <id> <secret> <displayName>"
	usageJoin   = "/join <channelId>"
	usageRename = "/rename <displayName>"
	usageHelp   = "/help"
)

// HelpText lists the local commands, one line each.
func HelpText() []string {
	return []string{
		"Available commands:",
		usageAuth + " - Authenticate with the server",
		usageJoin + " - Join a channel",
		usageRename + " - Change your display name",
		usageHelp + " - Show this help message",
	}
}
