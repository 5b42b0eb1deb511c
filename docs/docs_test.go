package docs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routerLine = regexp.MustCompile(`(?m)^// @Router (\S+) \[(\w+)\]$`)

type document struct {
	BasePath    string                                `json:"basePath"`
	Paths       map[string]map[string]json.RawMessage `json:"paths"`
	Definitions map[string]json.RawMessage            `json:"definitions"`
}

func readDoc(t *testing.T) (document, string) {
	t.Helper()
	raw := SwaggerInfo.ReadDoc()
	var d document
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	return d, raw
}

func TestDocCoversAnnotatedRoutes(t *testing.T) {
	d, _ := readDoc(t)
	assert.Equal(t, "/api/v1", d.BasePath)

	files, err := filepath.Glob("../internal/api/handler/*.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	routes := 0
	for _, f := range files {
		if strings.HasSuffix(f, "_test.go") {
			continue
		}
		src, err := os.ReadFile(f)
		require.NoError(t, err)
		for _, m := range routerLine.FindAllStringSubmatch(string(src), -1) {
			routes++
			ops, ok := d.Paths[m[1]]
			if assert.True(t, ok, "path %s missing", m[1]) {
				assert.Contains(t, ops, m[2], "%s %s missing", m[2], m[1])
			}
		}
	}
	assert.Greater(t, routes, 40)
}

func TestDocReferencesResolve(t *testing.T) {
	d, raw := readDoc(t)
	refs := regexp.MustCompile(`"#/definitions/([^"]+)"`).FindAllStringSubmatch(raw, -1)
	require.NotEmpty(t, refs)
	for _, r := range refs {
		assert.Contains(t, d.Definitions, r[1])
	}
	for _, name := range []string{"respond.ErrorResponse", "tournament.Game", "handler.GameDetail", "scoring.Config", "store.Review"} {
		assert.Contains(t, d.Definitions, name)
	}
}
