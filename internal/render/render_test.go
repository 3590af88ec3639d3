package render

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/rules"
)

func TestRule_EscapesMarkup(t *testing.T) {
	html, err := Rule(rules.Decoded{ID: 9, Text: `<script>alert("x")</script> & 'q'`})
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&amp;")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, `"x"`)
	assert.NotContains(t, out, "'q'")
}

func TestRule_CarriesID(t *testing.T) {
	html, err := Rule(rules.Decoded{ID: 42, Text: `GET \x00`})
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, `id="rule-42"`)
	assert.Contains(t, out, `data-rule-id="42"`)
	assert.Contains(t, out, "deleteRule(")
	assert.Contains(t, out, `GET \x00`)
}

func TestServiceCard(t *testing.T) {
	node, err := Rule(rules.Decoded{ID: 1, Text: "a"})
	require.NoError(t, err)

	card, err := ServiceCard("http", []template.HTML{node})
	require.NoError(t, err)

	out := string(card)
	assert.Contains(t, out, `id="http-rules-list"`)
	assert.Contains(t, out, `id="rule-1"`)
	assert.True(t, strings.Index(out, "http-rules-list") < strings.Index(out, "rule-1"))
}

func TestServiceCard_EscapesName(t *testing.T) {
	card, err := ServiceCard(`"><b>`, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(card), "<b>")
}

func TestOption(t *testing.T) {
	opt, err := Option("ssh")
	require.NoError(t, err)
	assert.Equal(t, `<option value="ssh">ssh</option>`, string(opt))
}

func TestPage(t *testing.T) {
	node, err := Rule(rules.Decoded{ID: 3, Text: "<i>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Page(&buf, PageData{
		Title:    "Rulegate",
		Services: []string{"http", "ssh"},
		Sections: []Section{{Name: "http", Nodes: []template.HTML{node}}, {Name: "ssh"}},
		Invalid:  map[string]bool{"rule-text": true},
		Feedback: "<bad>",
		Ready:    true,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `<option value="default" selected>`)
	assert.Contains(t, out, `<option value="ssh">ssh</option>`)
	assert.Contains(t, out, `id="ssh-rules-list"`)
	assert.Contains(t, out, "&lt;i&gt;")
	assert.Contains(t, out, "&lt;bad&gt;")
	assert.Contains(t, out, `form-control is-invalid`)
	assert.NotContains(t, out, "form-select is-invalid")
	assert.NotContains(t, out, "disabled>Add")
	assert.Contains(t, out, `value="hex"`)
}

func TestPage_NotReadyDisablesAdd(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(&buf, PageData{Title: "x"}))
	assert.Contains(t, buf.String(), "disabled>Add")
}

func TestLoginPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, LoginPage(&buf, LoginData{Title: "Rulegate", Invalid: true}))
	assert.Contains(t, buf.String(), "form-control is-invalid")
}
