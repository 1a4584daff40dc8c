package remoteapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawContentURLJoinsOwnerRepoBranchSubpathFile(t *testing.T) {
	ref := Ref{Host: "github.com", Owner: "acme", Repo: "widget", Branch: "main", Subpath: "apps/one"}
	got := rawContentURL(ref, "index.js")
	assert.Equal(t, "https://github.com/raw/acme/widget/main/apps/one/index.js", got)
}

func TestRawContentURLWithoutSubpath(t *testing.T) {
	ref := Ref{Host: "github.com", Owner: "acme", Repo: "widget", Branch: "main"}
	got := rawContentURL(ref, "index.js")
	assert.Equal(t, "https://github.com/raw/acme/widget/main/index.js", got)
}

func TestIntersectAllowedDepsDropsUnknown(t *testing.T) {
	out := IntersectAllowedDeps([]string{"bbs-utils", "left-pad", "bbs-dates"})
	assert.ElementsMatch(t, []string{"bbs-utils", "bbs-dates"}, out)
}

func TestIntersectAllowedDepsEmptyInput(t *testing.T) {
	assert.Empty(t, IntersectAllowedDeps(nil))
}

func TestDefaultMain(t *testing.T) {
	assert.Equal(t, "index.js", defaultMain())
}
