// Package message defines the IPK-25-CHAT message kinds and the decoded
// message shape shared by the grammar, codec, and session packages.
package message

const (
	// Delimiter terminates every message on the wire.
	Delimiter = "\r\n"

	MaxIDLen          = 20
	MaxSecretLen      = 128
	MaxDisplayNameLen = 20
	MaxContentLen     = 60000

	// DefaultDisplayName is used until the user authenticates or renames.
	DefaultDisplayName = "Unknown"
)

// Wire keywords.
const (
	KeywordAuth  = "AUTH"
	KeywordJoin  = "JOIN"
	KeywordMsg   = "MSG"
	KeywordErr   = "ERR"
	KeywordReply = "REPLY"
	KeywordBye   = "BYE"
	KeywordAs    = "AS"
	KeywordUsing = "USING"
	KeywordFrom  = "FROM"
	KeywordIs    = "IS"
	StatusOK     = "OK"
	StatusNOK    = "NOK"
)

// Kind is the closed set of message kinds. Rename and Help never reach the
// wire; Confirm and Ping belong to the datagram variant and are never
// admissible on a stream session.
type Kind uint8

const (
	Unknown Kind = iota
	Auth
	Join
	Msg
	Rename
	Help
	Err
	Reply
	NotReply
	Bye
	Confirm
	Ping
)

var kindNames = [...]string{
	Unknown:  "UNKNOWN",
	Auth:     "AUTH",
	Join:     "JOIN",
	Msg:      "MSG",
	Rename:   "RENAME",
	Help:     "HELP",
	Err:      "ERR",
	Reply:    "REPLY",
	NotReply: "NOT_REPLY",
	Bye:      "BYE",
	Confirm:  "CONFIRM",
	Ping:     "PING",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Local reports whether k is handled entirely on the client.
func (k Kind) Local() bool {
	return k == Rename || k == Help
}

// AwaitsReply reports whether sending k opens a reply correlation.
func (k Kind) AwaitsReply() bool {
	return k == Auth || k == Join
}

// IsReply reports whether k resolves a pending correlation.
func (k Kind) IsReply() bool {
	return k == Reply || k == NotReply
}

// Message is one decoded message. Only the fields relevant to Kind are set.
type Message struct {
	Kind        Kind
	ID          string
	Secret      string
	DisplayName string
	ChannelID   string
	Content     string
	// Raw is the text the message was parsed from, delimiter stripped.
	Raw string
	// Truncated is set when Content was cut to MaxContentLen.
	Truncated bool
}

// FromServer reports whether a server may legitimately send k on a stream
// session.
func (k Kind) FromServer() bool {
	switch k {
	case Msg, Err, Reply, NotReply, Bye:
		return true
	default:
		return false
	}
}
