package codec

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/errors"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		name string
		cmd  command.Command
		want string
	}{
		{
			name: "dataless opcode",
			cmd:  command.MustNew(command.KindNoop, nil),
			want: "maven-surefire-command:noop\n",
		},
		{
			name: "opcode with data",
			cmd:  command.MustNew(command.KindRunClass, []byte("org.example.FooTest")),
			want: "maven-surefire-command:run-testclass:b3JnLmV4YW1wbGUuRm9vVGVzdA==\n",
		},
		{
			name: "data opcode with empty payload",
			cmd:  command.MustNew(command.KindShutdown, nil),
			want: "maven-surefire-command:shutdown:\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, string(Encode(tc.cmd)))
		})
	}
}

func TestAppendFrame_KeepsPrefix(t *testing.T) {
	buf := Encode(command.MustNew(command.KindNoop, nil))
	buf = AppendFrame(buf, command.MustNew(command.KindByeAck, nil))

	require.Equal(t, "maven-surefire-command:noop\nmaven-surefire-command:bye-ack\n", string(buf))
}

func TestDecodeEvent_IsIdentity(t *testing.T) {
	for _, line := range []string{"", "event", " padded ", "with\rcarriage"} {
		require.Equal(t, line, DecodeEvent(line))
	}
}

func TestDecodeCommand_Errors(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{name: "empty line", line: ""},
		{name: "wrong magic", line: "other-magic:noop\n"},
		{name: "unknown opcode", line: "maven-surefire-command:bogus\n"},
		{name: "missing data", line: "maven-surefire-command:run-testclass\n"},
		{name: "unexpected data", line: "maven-surefire-command:noop:AAAA\n"},
		{name: "bad base64", line: "maven-surefire-command:shutdown:***\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCommand(tc.line)

			frameErr, ok := stderrors.AsType[*errors.FrameError](err)
			require.True(t, ok, "expected FrameError, got %v", err)
			require.Equal(t, tc.line, frameErr.Line)
		})
	}
}

func TestDecodeCommand_WithoutTerminator(t *testing.T) {
	cmd, err := DecodeCommand("maven-surefire-command:skip-since-next-test")
	require.NoError(t, err)
	require.Equal(t, command.KindSkipSinceNextTest, cmd.Kind())
}

func genCommand() *rapid.Generator[command.Command] {
	return rapid.Custom(func(t *rapid.T) command.Command {
		kind := rapid.SampledFrom(command.Kinds()).Draw(t, "kind")

		var data []byte
		if kind.HasData() {
			data = rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		}

		return command.MustNew(kind, data)
	})
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cmd := genCommand().Draw(t, "cmd")

		frame := Encode(cmd)
		if frame[len(frame)-1] != Terminator {
			t.Fatalf("frame does not end with terminator: %q", frame)
		}

		// Exactly one terminator: payload bytes never leak onto the wire raw.
		if strings.Count(string(frame), "\n") != 1 {
			t.Fatalf("frame contains embedded newlines: %q", frame)
		}

		decoded, err := DecodeCommand(DecodeEvent(strings.TrimSuffix(string(frame), "\n")))
		if err != nil {
			t.Fatalf("decode %q: %v", frame, err)
		}

		if !decoded.Equal(cmd) {
			t.Fatalf("round trip mismatch: got %v/%q want %v/%q",
				decoded.Kind(), decoded.Data(), cmd.Kind(), cmd.Data())
		}
	})
}
