package remoteapp

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsolateExposesModuleExports(t *testing.T) {
	iso, exports, err := NewIsolate("app1", `module.exports.handleCommand = function(cmd) { return "got:" + cmd; };`, nil)
	require.NoError(t, err)
	require.NotNil(t, iso)

	fn, ok := goja.AssertFunction(exports.(*goja.Object).Get("handleCommand"))
	require.True(t, ok)

	result, err := iso.Call(fn, goja.Undefined(), iso.rt.ToValue("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, "got:HELLO", result.String())
}

func TestNewIsolateRejectsUnparsableSource(t *testing.T) {
	_, _, err := NewIsolate("app1", "function {{{ invalid", nil)
	assert.Error(t, err)
}

func TestNewIsolateRejectsRuntimePanic(t *testing.T) {
	_, _, err := NewIsolate("app1", `throw new Error("boom");`, nil)
	assert.Error(t, err)
}

func TestRequireRejectsDisallowedModule(t *testing.T) {
	_, _, err := NewIsolate("app1", `require("fs");`, nil)
	assert.Error(t, err)
}

func TestRequireAllowsWhitelistedModule(t *testing.T) {
	_, exports, err := NewIsolate("app1", `var utils = require("bbs-utils"); module.exports.ok = utils.deepEqual(1, 1);`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, exports.(*goja.Object).Get("ok").Export())
}

func TestRequireRejectsModuleNotInDeclaredDeps(t *testing.T) {
	_, _, err := NewIsolate("app1", `require("bbs-dates");`, []string{"bbs-utils"})
	assert.Error(t, err)
}

func TestRequireAllowsModuleInDeclaredDeps(t *testing.T) {
	_, exports, err := NewIsolate("app1", `var utils = require("bbs-utils"); module.exports.ok = utils.deepEqual(1, 1);`, []string{"bbs-utils"})
	require.NoError(t, err)
	assert.Equal(t, true, exports.(*goja.Object).Get("ok").Export())
}

func TestCallRecoversFromPanic(t *testing.T) {
	iso, exports, err := NewIsolate("app1", `module.exports.boom = function() { throw new Error("nope"); };`, nil)
	require.NoError(t, err)

	fn, ok := goja.AssertFunction(exports.(*goja.Object).Get("boom"))
	require.True(t, ok)

	_, err = iso.Call(fn, goja.Undefined())
	assert.Error(t, err)
}
