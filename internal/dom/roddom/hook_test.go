package roddom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
)

func TestHookScriptEmbedsConfig(t *testing.T) {
	script, err := hookScript(HookConfig{Owner: "tok-1", SearchInput: ".o_searchview_input"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "(() => {"))
	assert.Contains(t, script, `"owner":"tok-1"`)
	assert.Contains(t, script, `"ownedAttr":"`+dom.OwnedAttr+`"`)
	assert.Contains(t, script, `"actionAttr":"`+dom.ActionAttr+`"`)
	assert.Contains(t, script, `"maxBuffer":1000`)
	assert.NotContains(t, script, "%!")
}

func TestHookConfigDefaultsKeepOverrides(t *testing.T) {
	cfg := HookConfig{OwnedAttr: "data-x", MaxBuffer: 5}.withDefaults()
	assert.Equal(t, "data-x", cfg.OwnedAttr)
	assert.Equal(t, 5, cfg.MaxBuffer)
	assert.Equal(t, dom.ValueAttr, cfg.ValueAttr)
}
