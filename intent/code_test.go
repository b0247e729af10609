package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		language string
	}{
		{"TaggedFence", "```python\nprint(1)\n```", "print(1)", "python"},
		{"UntaggedFence", "```\nls -la\n```", "ls -la", ""},
		{"InlineFence", "```console.log(1)```", "console.log(1)", ""},
		{"ProseAroundFence", "Please run this:\n```js\nconsole.log('hi')\n```\nthanks", "console.log('hi')", "js"},
		{"FirstFenceWins", "```py\na = 1\n```\nand\n```py\nb = 2\n```", "a = 1", "py"},
		{"CRLF", "```bash\r\necho ok\r\n```", "echo ok", "bash"},
		{"NoFence", "  print('raw')\n", "print('raw')", ""},
		{"Empty", "   ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractCode(tt.text))
			assert.Equal(t, tt.language, FenceLanguage(tt.text))
		})
	}
}

func TestCode(t *testing.T) {
	code, err := Code("```python\nprint(1)\n```", "")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", code)

	code, err = Code("run something", "  print(2) ")
	require.NoError(t, err)
	assert.Equal(t, "print(2)", code)

	_, err = Code("   ", "")
	assert.ErrorIs(t, err, ErrNoCode)

	_, err = Code("", "   ")
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestOwnerID(t *testing.T) {
	assert.Equal(t, "user-1", OwnerID("user-1"))
	assert.Equal(t, DefaultOwner, OwnerID(""))
	assert.Equal(t, "default-user", OwnerID("  "))
}
