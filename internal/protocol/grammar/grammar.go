// Package grammar checks IPK-25-CHAT wire text against the exact token
// grammar of each message kind. Validation is pure: callers decide what to
// log and whether the session survives.
package grammar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danmuck/ipkchat/internal/protocol/message"
)

const (
	FieldTerminator  = "terminator"
	FieldLayout      = "layout"
	FieldID          = "id"
	FieldChannelID   = "channel_id"
	FieldSecret      = "secret"
	FieldDisplayName = "display_name"
	FieldContent     = "content"
	FieldStatus      = "status"
)

var (
	idPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,20}$`)
	secretPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// Error reports why raw text failed the grammar for Kind.
type Error struct {
	Kind   message.Kind
	Field  string
	Reason string
	Raw    string
}

func (e Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("grammar: kind=%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("grammar: kind=%s field=%s: %s", e.Kind, e.Field, e.Reason)
}

// Valid reports whether raw satisfies the grammar for kind.
func Valid(kind message.Kind, raw string) bool {
	return Validate(kind, raw) == nil
}

// Validate checks raw wire text, including its CRLF terminator, against the
// grammar for kind. Kinds without a stream grammar always fail.
func Validate(kind message.Kind, raw string) error {
	if !strings.HasSuffix(raw, message.Delimiter) {
		return fail(kind, FieldTerminator, "missing CRLF terminator", raw)
	}
	body := strings.TrimSuffix(raw, message.Delimiter)

	var err error
	switch kind {
	case message.Auth:
		err = validateAuth(body)
	case message.Join:
		err = validateJoin(body)
	case message.Msg:
		err = validateFromIs(message.KeywordMsg, body)
	case message.Err:
		err = validateFromIs(message.KeywordErr, body)
	case message.Reply:
		err = validateReply(message.StatusOK, body)
	case message.NotReply:
		err = validateReply(message.StatusNOK, body)
	case message.Bye:
		err = validateBye(body)
	default:
		return fail(kind, "", "no stream grammar for kind", raw)
	}
	if err != nil {
		e := err.(Error)
		e.Kind = kind
		e.Raw = raw
		return e
	}
	return nil
}

// AUTH <id> AS <displayName> USING <secret>
func validateAuth(body string) error {
	parts := strings.Split(body, " ")
	if len(parts) != 6 || parts[0] != message.KeywordAuth || parts[2] != message.KeywordAs || parts[4] != message.KeywordUsing {
		return layoutError("want AUTH <id> AS <displayName> USING <secret>")
	}
	if err := checkID(FieldID, parts[1]); err != nil {
		return err
	}
	if err := checkDisplayName(parts[3]); err != nil {
		return err
	}
	return checkSecret(parts[5])
}

// JOIN <channelId> AS <displayName>
func validateJoin(body string) error {
	parts := strings.Split(body, " ")
	if len(parts) != 4 || parts[0] != message.KeywordJoin || parts[2] != message.KeywordAs {
		return layoutError("want JOIN <channelId> AS <displayName>")
	}
	if err := checkID(FieldChannelID, parts[1]); err != nil {
		return err
	}
	return checkDisplayName(parts[3])
}

// MSG|ERR FROM <displayName> IS <content>
func validateFromIs(keyword string, body string) error {
	parts := strings.SplitN(body, " ", 5)
	if len(parts) != 5 || parts[0] != keyword || parts[1] != message.KeywordFrom || parts[3] != message.KeywordIs {
		return layoutError("want " + keyword + " FROM <displayName> IS <content>")
	}
	if err := checkDisplayName(parts[2]); err != nil {
		return err
	}
	return checkContent(parts[4])
}

// REPLY OK|NOK IS <content>
func validateReply(status string, body string) error {
	parts := strings.SplitN(body, " ", 4)
	if len(parts) != 4 || parts[0] != message.KeywordReply || parts[2] != message.KeywordIs {
		return layoutError("want REPLY OK|NOK IS <content>")
	}
	if parts[1] != status {
		return Error{Field: FieldStatus, Reason: fmt.Sprintf("want status %s, got %q", status, parts[1])}
	}
	return checkContent(parts[3])
}

// BYE FROM <displayName>
func validateBye(body string) error {
	parts := strings.Split(body, " ")
	if len(parts) != 3 || parts[0] != message.KeywordBye || parts[1] != message.KeywordFrom {
		return layoutError("want BYE FROM <displayName>")
	}
	return checkDisplayName(parts[2])
}

// ValidID reports whether id is a valid user or channel id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidSecret reports whether secret is a valid credential token.
func ValidSecret(secret string) bool {
	return secretPattern.MatchString(secret)
}

// ValidDisplayName reports whether name is 1-20 visible ASCII characters.
func ValidDisplayName(name string) bool {
	if len(name) == 0 || len(name) > message.MaxDisplayNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x21 || name[i] > 0x7E {
			return false
		}
	}
	return true
}

// ValidContent reports whether content is 1-60000 printable ASCII
// characters, newlines allowed.
func ValidContent(content string) bool {
	return checkContent(content) == nil
}

// TruncateContent cuts content to the protocol limit. The flag reports
// whether anything was dropped so the caller can surface it.
func TruncateContent(content string) (string, bool) {
	if len(content) <= message.MaxContentLen {
		return content, false
	}
	return content[:message.MaxContentLen], true
}

func checkID(field string, id string) error {
	if !ValidID(id) {
		return Error{Field: field, Reason: fmt.Sprintf("invalid id %q", id)}
	}
	return nil
}

func checkSecret(secret string) error {
	if !ValidSecret(secret) {
		return Error{Field: FieldSecret, Reason: "invalid secret"}
	}
	return nil
}

func checkDisplayName(name string) error {
	if !ValidDisplayName(name) {
		return Error{Field: FieldDisplayName, Reason: fmt.Sprintf("invalid display name %q", name)}
	}
	return nil
}

func checkContent(content string) error {
	if len(content) == 0 {
		return Error{Field: FieldContent, Reason: "empty content"}
	}
	if len(content) > message.MaxContentLen {
		return Error{Field: FieldContent, Reason: fmt.Sprintf("content exceeds %d characters", message.MaxContentLen)}
	}
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c == '\n' || (c >= 0x20 && c <= 0x7E) {
			continue
		}
		return Error{Field: FieldContent, Reason: fmt.Sprintf("non-printable byte 0x%02x at offset %d", c, i)}
	}
	return nil
}

func layoutError(reason string) error {
	return Error{Field: FieldLayout, Reason: reason}
}

func fail(kind message.Kind, field string, reason string, raw string) error {
	return Error{Kind: kind, Field: field, Reason: reason, Raw: raw}
}
