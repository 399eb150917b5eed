package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestHealth(t *testing.T) {
	t.Cleanup(func() { healthOutputFormat, healthRemote = "table", "" })

	out, err := executeCommand(t, "--config", writeTestProject(t), "health", "-o", "json")
	require.NoError(t, err)

	assert.True(t, gjson.Get(out, "core.healthy").Bool())
	assert.Equal(t, "not configured", gjson.Get(out, "github.message").String())
	assert.False(t, gjson.Get(out, "kubernetes.healthy").Bool())
}
