package scope

import (
	"strings"
	"testing"

	"github.com/meysamhadeli/codegrep/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findRegion(regions []models.ScopeContext, kind models.ScopeKind, name string) *models.ScopeContext {
	for i := range regions {
		if regions[i].Kind == kind && regions[i].Name == name {
			return &regions[i]
		}
	}
	return nil
}

func TestResolve_GoFunctionAndType(t *testing.T) {
	src := `package main

import (
	"fmt"
)

type Greeter struct {
	name string
}

func main() {
	fmt.Println("hello")
}
`
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("go", []byte(src))
	require.NoError(t, err)

	fn := findRegion(regions, models.ScopeFunction, "main")
	require.NotNil(t, fn)
	assert.Equal(t, strings.Index(src, "func main"), fn.Start)
	assert.Equal(t, strings.Index(src, "fmt.Println")+len(`fmt.Println("hello")`)+2, fn.End)

	cls := findRegion(regions, models.ScopeClass, "Greeter")
	require.NotNil(t, cls)
	assert.True(t, cls.Contains(strings.Index(src, "name string"), strings.Index(src, "name string")+4))

	imp := findRegion(regions, models.ScopeImport, "")
	require.NotNil(t, imp)
	assert.True(t, imp.Contains(strings.Index(src, `"fmt"`), strings.Index(src, `"fmt"`)+5))
}

func TestResolve_StringLiteralNeverOpensScope(t *testing.T) {
	src := `fn real() {
	let s = "fn fake() {}";
	let n = 1;
}
`
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("rust", []byte(src))
	require.NoError(t, err)

	assert.NotNil(t, findRegion(regions, models.ScopeFunction, "real"))
	assert.Nil(t, findRegion(regions, models.ScopeFunction, "fake"))

	// The brace inside the literal must not have shifted the real
	// function's closing brace.
	fn := findRegion(regions, models.ScopeFunction, "real")
	assert.Equal(t, len(src)-1, fn.End)
}

func TestResolve_CommentSpans(t *testing.T) {
	src := "// TODO build\nlet x = 1; /* block\nspans lines */ let y = 2;\n"
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("rust", []byte(src))
	require.NoError(t, err)

	var comments []models.ScopeContext
	for _, r := range regions {
		if r.Kind == models.ScopeComment {
			comments = append(comments, r)
		}
	}
	require.Len(t, comments, 2)
	assert.Equal(t, 0, comments[0].Start)
	assert.Equal(t, len("// TODO build"), comments[0].End)
	assert.Equal(t, strings.Index(src, "/*"), comments[1].Start)
	assert.Equal(t, strings.Index(src, "*/")+2, comments[1].End)
}

func TestResolve_CommentMarkerInsideString(t *testing.T) {
	src := "let url = \"http://example.com\";\nlet x = 1;\n"
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("rust", []byte(src))
	require.NoError(t, err)
	assert.Nil(t, findRegion(regions, models.ScopeComment, ""))
}

func TestResolve_PythonIndentation(t *testing.T) {
	src := `import os
from sys import argv

class Greeter:
    def greet(self):
        return "hi"

def main():
    print("x")

top = 1
`
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("python", []byte(src))
	require.NoError(t, err)

	cls := findRegion(regions, models.ScopeClass, "Greeter")
	require.NotNil(t, cls)
	greet := findRegion(regions, models.ScopeFunction, "greet")
	require.NotNil(t, greet)
	assert.True(t, cls.Contains(greet.Start, greet.End))

	main := findRegion(regions, models.ScopeFunction, "main")
	require.NotNil(t, main)
	assert.False(t, main.Contains(strings.Index(src, "top = 1"), strings.Index(src, "top = 1")+3))

	imp := findRegion(regions, models.ScopeImport, "")
	require.NotNil(t, imp)
	assert.Equal(t, 0, imp.Start)
	assert.True(t, imp.Contains(strings.Index(src, "from sys"), strings.Index(src, "from sys")+4))
}

func TestResolve_GoMethodReceiverName(t *testing.T) {
	src := "func (g *Greeter) Greet() string {\n\treturn g.name\n}\n"
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("go", []byte(src))
	require.NoError(t, err)
	assert.NotNil(t, findRegion(regions, models.ScopeFunction, "Greet"))
}

func TestResolve_MalformedFallsBackToWholeFile(t *testing.T) {
	src := "func broken() {\n\tif x {\n" // two braces never closed
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("go", []byte(src))
	require.ErrorIs(t, err, models.ErrScopeAmbiguous)
	require.Len(t, regions, 1)
	assert.Equal(t, models.ScopeNone, regions[0].Kind)
	assert.Equal(t, 0, regions[0].Start)
	assert.Equal(t, len(src), regions[0].End)
}

func TestResolve_UnterminatedBlockCommentIsAmbiguous(t *testing.T) {
	src := "let x = 1;\n/* never closed\n"
	resolver := NewResolver(Options{})
	_, err := resolver.Resolve("rust", []byte(src))
	assert.ErrorIs(t, err, models.ErrScopeAmbiguous)
}

func TestResolve_FastModeSkipsStringAnalysis(t *testing.T) {
	// Balanced braces inside a literal: fast mode counts them but stays
	// coherent, and the enclosing function still resolves.
	src := "fn real() {\n\tlet s = \"{}\";\n}\n"
	resolver := NewResolver(Options{SkipEscapeAnalysis: true})
	regions, err := resolver.Resolve("rust", []byte(src))
	require.NoError(t, err)
	assert.NotNil(t, findRegion(regions, models.ScopeFunction, "real"))
}

func TestResolve_GenericFamilyPlainText(t *testing.T) {
	src := "fn main() { TODO }\n"
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("", []byte(src))
	require.NoError(t, err)

	fn := findRegion(regions, models.ScopeFunction, "main")
	require.NotNil(t, fn)
	idx := strings.Index(src, "TODO")
	assert.True(t, fn.Contains(idx, idx+4))
}

func TestResolve_JavascriptConstIsImportOnlyWithRequire(t *testing.T) {
	src := "const fs = require(\"fs\");\n\nconst total = price * qty;\nconst answer = 42;\n"
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("javascript", []byte(src))
	require.NoError(t, err)

	imp := findRegion(regions, models.ScopeImport, "")
	require.NotNil(t, imp)
	assert.Equal(t, 0, imp.Start)
	assert.Equal(t, len(`const fs = require("fs");`), imp.End)
	assert.False(t, imp.Contains(strings.Index(src, "answer"), strings.Index(src, "answer")+6))
}

func TestResolve_TypeAliasIsNotAClass(t *testing.T) {
	src := "type ID int\n\nfunc f() {\n}\n"
	resolver := NewResolver(Options{})
	regions, err := resolver.Resolve("go", []byte(src))
	require.NoError(t, err)
	assert.Nil(t, findRegion(regions, models.ScopeClass, "ID"))
	assert.NotNil(t, findRegion(regions, models.ScopeFunction, "f"))
}
