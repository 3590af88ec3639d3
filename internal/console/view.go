package console

import (
	"fmt"
	"html/template"
	"maps"
	"slices"
	"sync"

	"grimm.is/rulegate/internal/render"
	"grimm.is/rulegate/internal/rules"
)

// Input fields that can be marked invalid.
const (
	FieldService  = "select-service"
	FieldRuleText = "rule-text"

	// FeedbackSlot shows the backend's reason for rejecting a rule.
	FeedbackSlot = "rule-text-invalid-feedback"
)

// containerTarget is the element service cards are appended to.
const containerTarget = "rules-div"

// PatchOp names a view change.
type PatchOp string

const (
	OpContainer PatchOp = "container"
	OpAppend    PatchOp = "append"
	OpRemove    PatchOp = "remove"
	OpInvalid   PatchOp = "invalid"
	OpValid     PatchOp = "valid"
	OpFeedback  PatchOp = "feedback"
	OpOption    PatchOp = "option"
	OpReady     PatchOp = "ready"
	OpToast     PatchOp = "toast"
)

// Patch is one incremental change to the view.
type Patch struct {
	Op     PatchOp       `json:"op"`
	Target string        `json:"target,omitempty"`
	HTML   template.HTML `json:"html,omitempty"`
	Text   string        `json:"text,omitempty"`
	Level  ToastLevel    `json:"level,omitempty"`
}

// ToastLevel is the severity of a notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Toast is a transient notification.
type Toast struct {
	Level ToastLevel
	Text  string
}

// maxToasts bounds the toast history kept for Snapshot.
const maxToasts = 5

type node struct {
	rule rules.Decoded
	html template.HTML
}

type section struct {
	name  string
	nodes []node
}

// View models the console screen. A rule id is either absent or rendered
// exactly once; present is the authoritative record of which.
type View struct {
	mu sync.Mutex

	options  []string
	sections []*section
	byName   map[string]*section
	present  map[int64]bool
	invalid  map[string]bool
	feedback string
	ready    bool
	toasts   []Toast

	nextSub int
	subs    map[int]func(Patch)
}

// NewView returns an empty view.
func NewView() *View {
	return &View{
		byName:  make(map[string]*section),
		present: make(map[int64]bool),
		invalid: make(map[string]bool),
		subs:    make(map[int]func(Patch)),
	}
}

// Subscribe registers fn to receive every patch. fn runs with the view
// locked, so it must not block or call back into the view.
func (v *View) Subscribe(fn func(Patch)) (cancel func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

func (v *View) publish(p Patch) {
	for _, fn := range v.subs {
		fn(p)
	}
}

// PopulateSelector appends one option per name, in order. Options already
// present are kept.
func (v *View) PopulateSelector(names []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, name := range names {
		html, err := render.Option(name)
		if err != nil {
			return err
		}
		v.options = append(v.options, name)
		v.publish(Patch{Op: OpOption, Target: FieldService, HTML: html})
	}
	return nil
}

// AddContainer creates the rule list for service. It is a no-op when the
// list exists.
func (v *View) AddContainer(service string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.addContainerLocked(service)
}

func (v *View) addContainerLocked(service string) error {
	if _, ok := v.byName[service]; ok {
		return nil
	}
	html, err := render.ServiceCard(service, nil)
	if err != nil {
		return err
	}
	s := &section{name: service}
	v.sections = append(v.sections, s)
	v.byName[service] = s
	v.publish(Patch{Op: OpContainer, Target: containerTarget, HTML: html})
	return nil
}

// Append renders d at the end of its service's list, creating the list if
// needed. A rule id that is already rendered is rejected.
func (v *View) Append(service string, d rules.Decoded) error {
	html, err := render.Rule(d)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.present[d.ID] {
		return fmt.Errorf("rule %d is already rendered", d.ID)
	}
	if err := v.addContainerLocked(service); err != nil {
		return err
	}
	s := v.byName[service]
	s.nodes = append(s.nodes, node{rule: d, html: html})
	v.present[d.ID] = true
	v.publish(Patch{Op: OpAppend, Target: rules.ListID(service), HTML: html})
	return nil
}

// Remove drops the node of rule id. It reports whether a node was removed.
func (v *View) Remove(id int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present[id] {
		return false
	}
	for _, s := range v.sections {
		i := slices.IndexFunc(s.nodes, func(n node) bool { return n.rule.ID == id })
		if i >= 0 {
			s.nodes = slices.Delete(s.nodes, i, i+1)
			break
		}
	}
	delete(v.present, id)
	v.publish(Patch{Op: OpRemove, Target: rules.NodeID(id)})
	return true
}

// Has reports whether rule id is rendered.
func (v *View) Has(id int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present[id]
}

// Len returns the number of rendered rules.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.present)
}

// MarkInvalid flags an input field.
func (v *View) MarkInvalid(field string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.invalid[field] = true
	v.publish(Patch{Op: OpInvalid, Target: field})
}

// SetFeedback fills the shared validation message slot.
func (v *View) SetFeedback(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feedback = text
	v.publish(Patch{Op: OpFeedback, Target: FeedbackSlot, Text: text})
}

// ClearInvalid unflags field and empties the validation message slot.
func (v *View) ClearInvalid(field string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.invalid, field)
	v.feedback = ""
	v.publish(Patch{Op: OpValid, Target: field})
	v.publish(Patch{Op: OpFeedback, Target: FeedbackSlot})
}

// Invalid reports whether field is flagged.
func (v *View) Invalid(field string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.invalid[field]
}

// Toast shows a notification.
func (v *View) Toast(level ToastLevel, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.toasts = append(v.toasts, Toast{Level: level, Text: text})
	if len(v.toasts) > maxToasts {
		v.toasts = v.toasts[len(v.toasts)-maxToasts:]
	}
	v.publish(Patch{Op: OpToast, Level: level, Text: text})
}

// SetReady enables add and delete controls.
func (v *View) SetReady() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ready = true
	v.publish(Patch{Op: OpReady})
}

// SectionSnapshot is one service list as rendered.
type SectionSnapshot struct {
	Name  string
	Rules []rules.Decoded
	Nodes []template.HTML
}

// Snapshot is a copy of the view state.
type Snapshot struct {
	Options  []string
	Sections []SectionSnapshot
	Invalid  map[string]bool
	Feedback string
	Ready    bool
	Toasts   []Toast
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{
		Options:  slices.Clone(v.options),
		Sections: make([]SectionSnapshot, 0, len(v.sections)),
		Invalid:  maps.Clone(v.invalid),
		Feedback: v.feedback,
		Ready:    v.ready,
		Toasts:   slices.Clone(v.toasts),
	}
	for _, s := range v.sections {
		ss := SectionSnapshot{Name: s.name}
		for _, n := range s.nodes {
			ss.Rules = append(ss.Rules, n.rule)
			ss.Nodes = append(ss.Nodes, n.html)
		}
		snap.Sections = append(snap.Sections, ss)
	}
	return snap
}

// PageData converts the snapshot into the console page model.
func (s Snapshot) PageData(title string) render.PageData {
	data := render.PageData{
		Title:    title,
		Services: s.Options,
		Invalid:  s.Invalid,
		Feedback: s.Feedback,
		Ready:    s.Ready,
	}
	for _, sec := range s.Sections {
		data.Sections = append(data.Sections, render.Section{Name: sec.Name, Nodes: sec.Nodes})
	}
	return data
}
