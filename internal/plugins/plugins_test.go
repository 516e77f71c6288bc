package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kas/internal/plugin"
)

func TestLoad(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, Load(reg))
	assert.Equal(t, []string{"dump", "shell", "unpack"}, reg.Names())

	for _, p := range reg.All() {
		assert.NotEmpty(t, p.Help(), p.Name())
	}
}

func TestLoadTwiceFails(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, Load(reg))
	assert.ErrorIs(t, Load(reg), plugin.ErrDuplicate)
	assert.Len(t, reg.All(), 3)
}
