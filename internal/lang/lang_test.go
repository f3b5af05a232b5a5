package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".js", "javascript"},
		{".jsx", "javascript"},
		{".mjs", "javascript"},
		{".ts", "typescript"},
		{".TS", "typescript"},
		{".tsx", "tsx"},
		{".vue", "vue"},
		{".py", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"javascript", "typescript", "tsx", "vue"} {
		l, ok := Languages[name]
		require.True(t, ok, "%s not registered", name)
		assert.NotNil(t, l.GetLanguage(), name)
	}
	assert.True(t, Languages["vue"].Container)
}

func TestScriptExtensionsExcludeContainers(t *testing.T) {
	t.Parallel()

	exts := ScriptExtensions()
	assert.Contains(t, exts, ".ts")
	assert.Contains(t, exts, ".jsx")
	assert.NotContains(t, exts, ".vue")
	assert.IsIncreasing(t, exts)
}

func TestForScriptLang(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "typescript", ForScriptLang("ts").Name)
	assert.Equal(t, "tsx", ForScriptLang("tsx").Name)
	assert.Equal(t, "javascript", ForScriptLang("").Name)
	assert.Equal(t, "javascript", ForScriptLang("jsx").Name)
}

func TestStringValue(t *testing.T) {
	t.Parallel()

	src := []byte(`import a from 'left-pad'; import b from "@scope/pkg";`)
	p := Languages["javascript"].NewParser()
	tree, err := p.ParseCtx(context.Background(), nil, src)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	require.Equal(t, uint32(2), root.NamedChildCount())
	first := root.NamedChild(0).ChildByFieldName("source")
	second := root.NamedChild(1).ChildByFieldName("source")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, "left-pad", StringValue(first, src))
	assert.Equal(t, "@scope/pkg", StringValue(second, src))
}
