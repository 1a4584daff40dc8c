package remoteapp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheapChecksRejectsOversizedSource(t *testing.T) {
	err := cheapChecks(strings.Repeat("x", MaxSourceBytes+1))
	assert.Error(t, err)
}

func TestCheapChecksRejectsUnbalancedBraces(t *testing.T) {
	err := cheapChecks("function f() { return 1;")
	assert.Error(t, err)
}

func TestCheapChecksAllowsNormalSource(t *testing.T) {
	err := cheapChecks("function f() { return 1; }")
	assert.NoError(t, err)
}

func TestRegexChecksRejectsPrototypeAccess(t *testing.T) {
	err := regexChecks("x.__proto__.y = 1;")
	assert.Error(t, err)
}

func TestRegexChecksRejectsDynamicFunction(t *testing.T) {
	err := regexChecks("var f = new Function('return 1');")
	assert.Error(t, err)
}

func TestRegexChecksAllowsNormalSource(t *testing.T) {
	err := regexChecks("function handle(cmd) { return cmd; }")
	assert.NoError(t, err)
}

func TestAstChecksRejectsUnparsableSource(t *testing.T) {
	err := astChecks("function {{{ not valid js")
	assert.Error(t, err)
}

func TestAstChecksAllowsValidSource(t *testing.T) {
	err := astChecks("function handleCommand(screen, cmd) { return cmd; }")
	assert.NoError(t, err)
}

func TestAstChecksRejectsForbiddenGlobal(t *testing.T) {
	err := astChecks("function f() { return process.env; }")
	assert.Error(t, err)
}

func TestAstChecksRejectsDangerousCall(t *testing.T) {
	err := astChecks("function f() { eval('1'); }")
	assert.Error(t, err)
}

func TestAstChecksRejectsEvalWithExactMessage(t *testing.T) {
	err := astChecks("eval('1+1')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dangerous method: eval")
}

func TestAstChecksRejectsForbiddenModule(t *testing.T) {
	err := astChecks("var fs = require('fs');")
	assert.Error(t, err)
}
