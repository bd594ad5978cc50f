package pyparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(src), Python3)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	return tree
}

func TestParse_ModuleRoot(t *testing.T) {
	tree := parseSource(t, "x = 1\n")
	assert.Equal(t, "module", tree.Root.Kind)
	assert.False(t, tree.HasError)
	assert.Nil(t, tree.FirstError())
}

func TestParse_AssignmentFields(t *testing.T) {
	tree := parseSource(t, "x = 1\n")

	stmts := tree.Root.Children()
	require.Len(t, stmts, 1)
	require.Equal(t, "expression_statement", stmts[0].Kind)

	assign := stmts[0].Children()[0]
	require.Equal(t, "assignment", assign.Kind)

	left := assign.Field("left")
	require.NotNil(t, left)
	assert.Equal(t, "identifier", left.Kind)
	assert.Equal(t, "x", left.Text())

	right := assign.Field("right")
	require.NotNil(t, right)
	assert.Equal(t, "integer", right.Kind)
	assert.Equal(t, "1", right.Text())
}

func TestParse_FunctionDefinition(t *testing.T) {
	tree := parseSource(t, "def greet(name):\n    return name\n")

	fn := tree.Root.Children()[0]
	require.Equal(t, "function_definition", fn.Kind)
	assert.Equal(t, "greet", fn.Field("name").Text())
	require.NotNil(t, fn.Field("parameters"))
	require.NotNil(t, fn.Field("body"))
	assert.False(t, fn.HasToken("async"))
}

func TestParse_AsyncToken(t *testing.T) {
	tree := parseSource(t, "async def fetch():\n    pass\n")

	fn := tree.Root.Children()[0]
	require.Equal(t, "function_definition", fn.Kind)
	assert.True(t, fn.HasToken("async"))
}

func TestParse_BinaryOperatorField(t *testing.T) {
	tree := parseSource(t, "y = 1 + 2\n")

	assign := tree.Root.Children()[0].Children()[0]
	binop := assign.Field("right")
	require.Equal(t, "binary_operator", binop.Kind)
	require.NotNil(t, binop.Field("operator"))
	assert.Equal(t, "+", binop.Field("operator").Kind)
}

func TestParse_RepeatedComparisonOperators(t *testing.T) {
	tree := parseSource(t, "b = 1 < 2 < 3\n")

	assign := tree.Root.Children()[0].Children()[0]
	cmp := assign.Field("right")
	require.Equal(t, "comparison_operator", cmp.Kind)
	assert.Len(t, cmp.Fields("operators"), 2)
}

func TestParse_CommentsDropped(t *testing.T) {
	tree := parseSource(t, "# leading comment\nx = 1  # trailing\n")

	for _, c := range tree.Root.Children() {
		assert.NotEqual(t, "comment", c.Kind)
	}
	require.Len(t, tree.Root.Children(), 1)
}

func TestParse_SyntaxErrorSurfaces(t *testing.T) {
	tree, err := Parse(context.Background(), []byte("def broken(:\n"), Python3)
	require.NoError(t, err)
	assert.True(t, tree.HasError)

	first := tree.FirstError()
	require.NotNil(t, first)
	assert.Equal(t, 0, first.Span.Start.Row)
}

func TestParseGrammar(t *testing.T) {
	g, err := ParseGrammar("")
	require.NoError(t, err)
	assert.Equal(t, Python3, g)

	g, err = ParseGrammar("python2")
	require.NoError(t, err)
	assert.Equal(t, Python2, g)

	_, err = ParseGrammar("cobol")
	require.Error(t, err)
}
