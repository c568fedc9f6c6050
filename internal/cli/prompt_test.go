package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "yes\n", want: true},
		{name: "y upper case", input: "Y\n", want: true},
		{name: "no", input: "no\n", want: false},
		{name: "retry until answered", input: "sure\n\nyes\n", want: true},
		{name: "no newline at end", input: "yes", want: true},
		{name: "end of input", input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withStdin(t, tt.input)
			var out bytes.Buffer
			p := newPrompter(&out)
			got, err := p.PromptFirstUse(context.Background(), "mgmt:443", "AB:CD")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "AB:CD")
		})
	}
}

func TestPrompterMismatchWarns(t *testing.T) {
	withStdin(t, "no\n")
	var out bytes.Buffer
	ok, err := newPrompter(&out).PromptMismatch(context.Background(), "mgmt:443", "AA:BB", "CC:DD")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "has changed")
	assert.Contains(t, out.String(), "Stored fingerprint: AA:BB")
	assert.Contains(t, out.String(), "Server fingerprint: CC:DD")
}

func TestPrompterPasswordFromPipe(t *testing.T) {
	withStdin(t, "s3cret\r\nrest\n")
	var out bytes.Buffer
	pw, err := newPrompter(&out).password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Equal(t, "Password: ", out.String())
}
