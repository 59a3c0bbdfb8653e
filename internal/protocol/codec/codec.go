// Package codec converts between user input, wire text, and display text.
//
// Classification differs per side: user input understands the local slash
// commands, wire text never does. Nothing here prints; callers own output.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/ipkchat/internal/protocol/grammar"
	"github.com/danmuck/ipkchat/internal/protocol/message"
)

var (
	// ErrRejected marks wire text that failed the grammar. The peer violated
	// the protocol and the text must not be displayed.
	ErrRejected       = errors.New("codec: message rejected")
	ErrUnknownCommand = errors.New("codec: unknown command")
	ErrUsage          = errors.New("codec: invalid command usage")
	ErrNotEncodable   = errors.New("codec: kind has no wire form")
)

// Side selects the classification grammar.
type Side uint8

const (
	ClientSide Side = iota
	ServerSide
)

const (
	cmdAuth   = "/auth"
	cmdJoin   = "/join"
	cmdRename = "/rename"
	cmdHelp   = "/help"
)

// Classify maps text to a kind without validating it.
func Classify(side Side, text string) message.Kind {
	switch side {
	case ClientSide:
		return classifyCommand(text)
	case ServerSide:
		return classifyWire(text)
	default:
		return message.Unknown
	}
}

func classifyCommand(text string) message.Kind {
	if !strings.HasPrefix(text, "/") {
		return message.Msg
	}
	command, _, _ := strings.Cut(text, " ")
	switch command {
	case cmdAuth:
		return message.Auth
	case cmdJoin:
		return message.Join
	case cmdRename:
		return message.Rename
	case cmdHelp:
		return message.Help
	default:
		return message.Unknown
	}
}

func classifyWire(text string) message.Kind {
	parts := strings.Split(strings.TrimSuffix(text, message.Delimiter), " ")
	if len(parts) < 2 {
		return message.Unknown
	}
	switch strings.ToUpper(parts[0]) {
	case message.KeywordMsg:
		return message.Msg
	case message.KeywordErr:
		return message.Err
	case message.KeywordBye:
		return message.Bye
	case message.KeywordAuth:
		return message.Auth
	case message.KeywordJoin:
		return message.Join
	case message.KeywordReply:
		switch strings.ToUpper(parts[1]) {
		case message.StatusOK:
			return message.Reply
		case message.StatusNOK:
			return message.NotReply
		}
	}
	return message.Unknown
}

// ParseCommand turns one line of user input into a message. Fields that
// depend on session state, such as the display name on JOIN, are left for
// the caller to fill.
func ParseCommand(text string) (message.Message, error) {
	kind := classifyCommand(text)
	msg := message.Message{Kind: kind, Raw: text}
	args := strings.Fields(text)

	switch kind {
	case message.Auth:
		if len(args) != 4 {
			return msg, fmt.Errorf("%w: %s", ErrUsage, usageAuth)
		}
		msg.ID, msg.Secret, msg.DisplayName = args[1], args[2], args[3]
	case message.Join:
		if len(args) != 2 {
			return msg, fmt.Errorf("%w: %s", ErrUsage, usageJoin)
		}
		msg.ChannelID = args[1]
	case message.Rename:
		if len(args) != 2 {
			return msg, fmt.Errorf("%w: %s", ErrUsage, usageRename)
		}
		if !grammar.ValidDisplayName(args[1]) {
			return msg, fmt.Errorf("%w: invalid display name %q", ErrUsage, args[1])
		}
		msg.DisplayName = args[1]
	case message.Help:
	case message.Msg:
		msg.Content = text
	default:
		return msg, fmt.Errorf("%w: %q", ErrUnknownCommand, firstToken(text))
	}
	return msg, nil
}

// Encode builds the exact wire text for msg, delimiter included, and checks
// it against the grammar. Local kinds encode to "" and are never sent.
func Encode(msg message.Message) (string, error) {
	var wire string
	switch msg.Kind {
	case message.Rename, message.Help:
		return "", nil
	case message.Auth:
		wire = fmt.Sprintf("AUTH %s AS %s USING %s", msg.ID, msg.DisplayName, msg.Secret)
	case message.Join:
		wire = fmt.Sprintf("JOIN %s AS %s", msg.ChannelID, msg.DisplayName)
	case message.Msg:
		wire = fmt.Sprintf("MSG FROM %s IS %s", msg.DisplayName, msg.Content)
	case message.Err:
		wire = fmt.Sprintf("ERR FROM %s IS %s", msg.DisplayName, msg.Content)
	case message.Reply:
		wire = fmt.Sprintf("REPLY OK IS %s", msg.Content)
	case message.NotReply:
		wire = fmt.Sprintf("REPLY NOK IS %s", msg.Content)
	case message.Bye:
		wire = fmt.Sprintf("BYE FROM %s", msg.DisplayName)
	default:
		return "", fmt.Errorf("%w: %s", ErrNotEncodable, msg.Kind)
	}
	wire += message.Delimiter
	if err := grammar.Validate(msg.Kind, wire); err != nil {
		return "", err
	}
	return wire, nil
}

// Parse classifies, normalizes, and validates one received frame. The
// returned message always carries Kind and Raw, even on error.
func Parse(raw string) (message.Message, error) {
	return parseAs(classifyWire(raw), raw)
}

// Decode renders wire text of the given kind for display. Bye has nothing
// to display and yields "".
func Decode(kind message.Kind, wire string) (string, error) {
	msg, err := parseAs(kind, wire)
	if err != nil {
		return "", err
	}
	return Display(msg), nil
}

// Display renders an already validated message.
func Display(msg message.Message) string {
	switch msg.Kind {
	case message.Msg:
		return fmt.Sprintf("%s: %s", msg.DisplayName, msg.Content)
	case message.Err:
		return fmt.Sprintf("ERROR FROM %s: %s", msg.DisplayName, msg.Content)
	case message.Reply:
		return "Action Success: " + msg.Content
	case message.NotReply:
		return "Action Failure: " + msg.Content
	default:
		return ""
	}
}

func parseAs(kind message.Kind, raw string) (message.Message, error) {
	body := strings.TrimSuffix(raw, message.Delimiter)
	msg := message.Message{Kind: kind, Raw: body}

	body = normalizeKeywords(kind, body)
	body, msg.Truncated = truncateBody(kind, body)
	if err := grammar.Validate(kind, body+message.Delimiter); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	switch kind {
	case message.Auth:
		parts := strings.Split(body, " ")
		msg.ID, msg.DisplayName, msg.Secret = parts[1], parts[3], parts[5]
	case message.Join:
		parts := strings.Split(body, " ")
		msg.ChannelID, msg.DisplayName = parts[1], parts[3]
	case message.Msg, message.Err:
		parts := strings.SplitN(body, " ", 5)
		msg.DisplayName, msg.Content = parts[2], parts[4]
	case message.Reply, message.NotReply:
		parts := strings.SplitN(body, " ", 4)
		msg.Content = parts[3]
	case message.Bye:
		parts := strings.Split(body, " ")
		msg.DisplayName = parts[2]
	}
	return msg, nil
}

// keywordLayout lists, per kind, the split limit that keeps content intact
// and the token positions holding fixed keywords.
var keywordLayout = map[message.Kind]struct {
	limit    int
	keywords []int
}{
	message.Auth:     {-1, []int{0, 2, 4}},
	message.Join:     {-1, []int{0, 2}},
	message.Msg:      {5, []int{0, 1, 3}},
	message.Err:      {5, []int{0, 1, 3}},
	message.Reply:    {4, []int{0, 1, 2}},
	message.NotReply: {4, []int{0, 1, 2}},
	message.Bye:      {-1, []int{0, 1}},
}

// normalizeKeywords upper-cases the fixed keyword positions; the grammar
// itself is case-sensitive.
func normalizeKeywords(kind message.Kind, body string) string {
	layout, ok := keywordLayout[kind]
	if !ok {
		return body
	}
	parts := strings.SplitN(body, " ", layout.limit)
	for _, i := range layout.keywords {
		if i < len(parts) {
			parts[i] = strings.ToUpper(parts[i])
		}
	}
	return strings.Join(parts, " ")
}

func truncateBody(kind message.Kind, body string) (string, bool) {
	layout, ok := keywordLayout[kind]
	if !ok || layout.limit < 0 {
		return body, false
	}
	parts := strings.SplitN(body, " ", layout.limit)
	if len(parts) != layout.limit {
		return body, false
	}
	content, cut := grammar.TruncateContent(parts[layout.limit-1])
	if !cut {
		return body, false
	}
	parts[layout.limit-1] = content
	return strings.Join(parts, " "), true
}

func firstToken(text string) string {
	token, _, _ := strings.Cut(text, " ")
	return token
}
