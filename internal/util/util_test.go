package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Count  int      `json:"count"`
	Author string   `json:"author,omitempty"`
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	data := map[string]any{"Name": "ada", "Items": []string{"a", "b"}}

	out, err = RenderTemplate(`Hi {{ .Name | title }} <{{ join ", " .Items }}> {{ default "none" .Missing }}`, data)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada <a, b> none", out)

	_, err = RenderTemplate("{{ .Broken", nil)
	assert.ErrorContains(t, err, "parse template")
}

func TestParseTemplate_Reuse(t *testing.T) {
	tmpl, err := ParseTemplate("to {{ upper .To }}")
	require.NoError(t, err)

	a, err := tmpl.Render(map[string]string{"To": "x"})
	require.NoError(t, err)
	b, err := tmpl.Render(map[string]string{"To": "y"})
	require.NoError(t, err)

	assert.Equal(t, "to X", a)
	assert.Equal(t, "to Y", b)
}

func TestSchemaValidator(t *testing.T) {
	v := NewSchemaValidator()

	s := v.Schema(greeting{})
	require.NotNil(t, s)
	assert.ElementsMatch(t, []string{"text", "tags", "count"}, s.Required)
	assert.Same(t, s, v.Schema(&greeting{}))

	assert.NoError(t, v.Validate(greeting{Text: "hi", Tags: []string{"x"}}))
	assert.NoError(t, v.Validate("not a struct"))
	assert.NoError(t, v.Validate(42))
	assert.NoError(t, v.Validate(nil))

	err := v.Validate(greeting{Tags: []string{"x"}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "text", ve.Field)
	assert.Equal(t, "validation error for field 'text': required field is empty", err.Error())

	err = v.Validate(&greeting{Text: "hi"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "tags", ve.Field)

	err = v.Validate((*greeting)(nil))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "$", ve.Field)
}
