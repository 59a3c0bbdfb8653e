package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/ipkchat/internal/protocol/grammar"
	"github.com/danmuck/ipkchat/internal/protocol/message"
	"github.com/danmuck/ipkchat/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestClassifyClientSide(t *testing.T) {
	testlog.Start(t)
	cases := map[string]message.Kind{
		"/auth a b c":      message.Auth,
		"/join general":    message.Join,
		"/rename bob":      message.Rename,
		"/help":            message.Help,
		"/shout hi":        message.Unknown,
		"/AUTH a b c":      message.Unknown,
		"hello there":      message.Msg,
		"AUTH a AS b US c": message.Msg,
	}
	for text, want := range cases {
		require.Equal(t, want, Classify(ClientSide, text), "text=%q", text)
	}
}

func TestClassifyServerSide(t *testing.T) {
	testlog.Start(t)
	cases := map[string]message.Kind{
		"MSG FROM a IS hi\r\n": message.Msg,
		"msg from a is hi":     message.Msg,
		"ERR FROM a IS x":      message.Err,
		"BYE FROM a":           message.Bye,
		"REPLY OK IS fine":     message.Reply,
		"reply nok IS no":      message.NotReply,
		"REPLY MAYBE IS ?":     message.Unknown,
		"JOIN ch AS a":         message.Join,
		"AUTH a AS b USING c":  message.Auth,
		"HELLO world":          message.Unknown,
		"BYE":                  message.Unknown,
		"":                     message.Unknown,
		"/help":                message.Unknown,
	}
	for text, want := range cases {
		require.Equal(t, want, Classify(ServerSide, text), "text=%q", text)
	}
}

func TestParseCommand(t *testing.T) {
	testlog.Start(t)

	msg, err := ParseCommand("/auth user1 s3cr3t Alice")
	require.NoError(t, err)
	require.Equal(t, message.Auth, msg.Kind)
	require.Equal(t, "user1", msg.ID)
	require.Equal(t, "s3cr3t", msg.Secret)
	require.Equal(t, "Alice", msg.DisplayName)

	msg, err = ParseCommand("/join general")
	require.NoError(t, err)
	require.Equal(t, "general", msg.ChannelID)

	msg, err = ParseCommand("/rename Bob")
	require.NoError(t, err)
	require.Equal(t, message.Rename, msg.Kind)
	require.Equal(t, "Bob", msg.DisplayName)

	msg, err = ParseCommand("just chatting")
	require.NoError(t, err)
	require.Equal(t, message.Msg, msg.Kind)
	require.Equal(t, "just chatting", msg.Content)

	for _, bad := range []string{"/auth only two", "/join", "/join a b", "/rename"} {
		_, err := ParseCommand(bad)
		require.ErrorIs(t, err, ErrUsage, "input=%q", bad)
	}
	_, err = ParseCommand("/rename " + strings.Repeat("n", 21))
	require.ErrorIs(t, err, ErrUsage)

	msg, err = ParseCommand("/dance now")
	require.ErrorIs(t, err, ErrUnknownCommand)
	require.Equal(t, message.Unknown, msg.Kind)
}

func TestEncodeExactWire(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		msg  message.Message
		want string
	}{
		{message.Message{Kind: message.Auth, ID: "user1", Secret: "s3cr3t", DisplayName: "Alice"}, "AUTH user1 AS Alice USING s3cr3t\r\n"},
		{message.Message{Kind: message.Join, ChannelID: "general", DisplayName: "Alice"}, "JOIN general AS Alice\r\n"},
		{message.Message{Kind: message.Msg, DisplayName: "Alice", Content: "hi there"}, "MSG FROM Alice IS hi there\r\n"},
		{message.Message{Kind: message.Err, DisplayName: "Alice", Content: "oops"}, "ERR FROM Alice IS oops\r\n"},
		{message.Message{Kind: message.Bye, DisplayName: "Alice"}, "BYE FROM Alice\r\n"},
		{message.Message{Kind: message.Reply, Content: "ok"}, "REPLY OK IS ok\r\n"},
		{message.Message{Kind: message.NotReply, Content: "no"}, "REPLY NOK IS no\r\n"},
		{message.Message{Kind: message.Help}, ""},
		{message.Message{Kind: message.Rename, DisplayName: "Bob"}, ""},
	}
	for _, tc := range cases {
		got, err := Encode(tc.msg)
		require.NoError(t, err, "kind=%s", tc.msg.Kind)
		require.Equal(t, tc.want, got)
	}
}

func TestEncodeRejectsInvalidFields(t *testing.T) {
	testlog.Start(t)
	_, err := Encode(message.Message{Kind: message.Auth, ID: "bad id!", Secret: "s", DisplayName: "A"})
	var gerr grammar.Error
	require.ErrorAs(t, err, &gerr)

	_, err = Encode(message.Message{Kind: message.Msg, DisplayName: "A", Content: "tab\there"})
	require.Error(t, err)

	_, err = Encode(message.Message{Kind: message.Ping})
	require.ErrorIs(t, err, ErrNotEncodable)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	cases := []message.Message{
		{Kind: message.Msg, DisplayName: "Alice", Content: "multi word content with IS inside"},
		{Kind: message.Msg, DisplayName: "x", Content: "line one\nline two"},
		{Kind: message.Err, DisplayName: "srv", Content: "something broke"},
		{Kind: message.Reply, Content: "Auth success."},
		{Kind: message.NotReply, Content: "Join refused."},
		{Kind: message.Bye, DisplayName: "server"},
		{Kind: message.Join, ChannelID: "ch-1", DisplayName: "Alice"},
		{Kind: message.Auth, ID: "id_1", Secret: "SeCrEt-9", DisplayName: "Al!ce"},
	}
	for _, in := range cases {
		wire, err := Encode(in)
		require.NoError(t, err)

		out, err := Parse(wire)
		require.NoError(t, err, "wire=%q", wire)
		require.Equal(t, in.Kind, out.Kind)
		require.Equal(t, in.DisplayName, out.DisplayName)
		require.Equal(t, in.Content, out.Content)
		require.Equal(t, in.ID, out.ID)
		require.Equal(t, in.Secret, out.Secret)
		require.Equal(t, in.ChannelID, out.ChannelID)
		require.False(t, out.Truncated)

		shown, err := Decode(in.Kind, wire)
		require.NoError(t, err)
		require.Equal(t, Display(in), shown)
	}
}

func TestDecodeDisplayFormats(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		kind message.Kind
		wire string
		want string
	}{
		{message.Msg, "MSG FROM Bob IS hello\r\n", "Bob: hello"},
		{message.Err, "ERR FROM Server IS kaput\r\n", "ERROR FROM Server: kaput"},
		{message.Reply, "REPLY OK IS Welcome\r\n", "Action Success: Welcome"},
		{message.NotReply, "REPLY NOK IS Denied\r\n", "Action Failure: Denied"},
		{message.Bye, "BYE FROM Server\r\n", ""},
		{message.Msg, "msg from Bob is lower keywords", "Bob: lower keywords"},
	}
	for _, tc := range cases {
		got, err := Decode(tc.kind, tc.wire)
		require.NoError(t, err, "wire=%q", tc.wire)
		require.Equal(t, tc.want, got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{
		"MSG FROM Bob\r\n",
		"MSG FROM Bob IS \r\n",
		"BYE FROM\r\n",
		"REPLY OK\r\n",
		"HELLO there\r\n",
		"AUTH a AS b\r\n",
	} {
		msg, err := Parse(raw)
		require.ErrorIs(t, err, ErrRejected, "raw=%q", raw)
		require.Equal(t, strings.TrimSuffix(raw, message.Delimiter), msg.Raw)
	}
}

func TestParseTruncatesLongContent(t *testing.T) {
	testlog.Start(t)
	long := strings.Repeat("a", message.MaxContentLen+10)
	msg, err := Parse("MSG FROM Bob IS " + long + "\r\n")
	require.NoError(t, err)
	require.True(t, msg.Truncated)
	require.Len(t, msg.Content, message.MaxContentLen)
}

func TestDecodeNeverPanics(t *testing.T) {
	testlog.Start(t)
	inputs := []string{"", " ", "\r\n", "MSG", "MSG FROM", "REPLY", "REPLY  IS", "\x00\x01", "BYE FROM a b"}
	for _, kind := range []message.Kind{message.Unknown, message.Msg, message.Err, message.Reply, message.NotReply, message.Bye, message.Auth, message.Join, message.Ping} {
		for _, in := range inputs {
			require.NotPanics(t, func() {
				_, err := Decode(kind, in)
				if err != nil && !errors.Is(err, ErrRejected) {
					t.Fatalf("kind=%s input=%q: unexpected error type %v", kind, in, err)
				}
			})
		}
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	testlog.Start(t)
	joined := strings.Join(HelpText(), "\n")
	for _, cmd := range []string{"/auth", "/join", "/rename", "/help"} {
		require.Contains(t, joined, cmd)
	}
}
