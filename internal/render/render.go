// Package render builds the HTML fragments of the rule console. All
// interpolation goes through html/template, so rule text decoded from
// arbitrary payload bytes can never be interpreted as markup.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"grimm.is/rulegate/internal/rules"
)

//go:embed templates/fragments.html
var fragmentsHTML string

//go:embed templates/page.html
var pageHTML string

//go:embed templates/login.html
var loginHTML string

var (
	fragments = template.Must(template.New("fragments").Parse(fragmentsHTML))
	page      = template.Must(template.Must(fragments.Clone()).New("page").Parse(pageHTML))
	login     = template.Must(template.New("login").Parse(loginHTML))
)

type ruleData struct {
	ID     int64
	NodeID string
	Text   string
}

type cardData struct {
	Name   string
	ListID string
	Rules  []template.HTML
}

// Rule renders one rule node: its id as text and as the node identifier
// rule-<id>, the escaped decoded text, and a delete control for the id.
func Rule(d rules.Decoded) (template.HTML, error) {
	return execute("rule", ruleData{ID: d.ID, NodeID: d.NodeID(), Text: d.Text})
}

// ServiceCard renders the container of one service with its list
// <service>-rules-list holding the given, already rendered, rule nodes.
func ServiceCard(service string, nodes []template.HTML) (template.HTML, error) {
	return execute("card", cardData{Name: service, ListID: rules.ListID(service), Rules: nodes})
}

// Option renders one selector entry for a service.
func Option(service string) (template.HTML, error) {
	return execute("option", service)
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	// html/template escaped every interpolated value above.
	return template.HTML(buf.String()), nil
}

// Section is one service card on the console page.
type Section struct {
	Name  string
	Nodes []template.HTML
}

// PageData feeds the console page.
type PageData struct {
	Title    string
	Services []string
	Sections []Section
	Types    []rules.Type
	Invalid  map[string]bool
	Feedback string
	Ready    bool
}

// Page writes the full console page.
func Page(w io.Writer, data PageData) error {
	cards := make([]template.HTML, 0, len(data.Sections))
	for _, s := range data.Sections {
		card, err := ServiceCard(s.Name, s.Nodes)
		if err != nil {
			return err
		}
		cards = append(cards, card)
	}
	if data.Types == nil {
		data.Types = rules.Types
	}

	return page.ExecuteTemplate(w, "page", struct {
		PageData
		Cards   []template.HTML
		Default string
	}{data, cards, rules.DefaultService})
}

// LoginData feeds the login page.
type LoginData struct {
	Title   string
	Invalid bool
}

// LoginPage writes the password form.
func LoginPage(w io.Writer, data LoginData) error {
	return login.Execute(w, data)
}
