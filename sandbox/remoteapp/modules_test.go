package remoteapp

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedAllowedNames(t *testing.T) {
	assert.Equal(t, []string{"bbs-dates", "bbs-utils"}, sortedAllowedNames(AllowedModules))
}

func TestDeepEqual(t *testing.T) {
	assert.True(t, deepEqual(map[string]any{"a": 1}, map[string]any{"a": 1}))
	assert.False(t, deepEqual(map[string]any{"a": 1}, map[string]any{"a": 2}))
}

func TestRegisterUtilsModuleExposesHelpers(t *testing.T) {
	rt := goja.New()
	exports := registerUtilsModule(rt)
	require.NoError(t, rt.Set("utils", exports))

	v, err := rt.RunString(`utils.get({a: {b: 2}}, "a.b", null)`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Export())

	v, err = rt.RunString(`utils.get({a: {}}, "a.b", "fallback")`)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v.Export())
}

func TestRegisterDatesModuleFormatsDate(t *testing.T) {
	rt := goja.New()
	exports := registerDatesModule(rt)
	require.NoError(t, rt.Set("dates", exports))

	v, err := rt.RunString(`dates.format(0, "date")`)
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01", v.Export())
}
