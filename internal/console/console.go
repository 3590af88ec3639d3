package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/message"

	"grimm.is/rulegate/internal/client"
	"grimm.is/rulegate/internal/codec"
	"grimm.is/rulegate/internal/config"
	"grimm.is/rulegate/internal/i18n"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
	"grimm.is/rulegate/internal/rules"
)

var (
	// ErrNotReady is returned by AddRule and DeleteRule until Load has
	// rendered every service.
	ErrNotReady = errors.New("console is still loading")

	// ErrInvalidInput is returned by AddRule when a required field is
	// missing; the offending fields are marked invalid in the view.
	ErrInvalidInput = errors.New("invalid input")
)

// Backend is the part of the rule backend the console uses.
// *client.HTTPClient implements it.
type Backend interface {
	Login(ctx context.Context, password string) error
	ListServices(ctx context.Context) ([]string, error)
	ListRules(ctx context.Context, service string) ([]rules.Rule, error)
	CreateRule(ctx context.Context, nr rules.NewRule) (*rules.Rule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// Options configures a Console or Gate.
type Options struct {
	Timeout time.Duration
	Logger  *logging.Logger
	Metrics *metrics.Registry
	Printer *message.Printer
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = config.DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.WithComponent("console")
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Get()
	}
	if o.Printer == nil {
		o.Printer = i18n.NewPrinter(i18n.DefaultLang)
	}
	return o
}

// Console drives one View against one backend session.
type Console struct {
	backend Backend
	view    *View
	opts    Options

	mu    sync.Mutex
	dir   *Directory
	ready atomic.Bool
}

// New creates a console that draws into view.
func New(b Backend, view *View, opts Options) *Console {
	return &Console{
		backend: b,
		view:    view,
		opts:    opts.withDefaults(),
	}
}

// View returns the console's view.
func (c *Console) View() *View {
	return c.view
}

// Directory returns the directory loaded by Load, or nil.
func (c *Console) Directory() *Directory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// Ready reports whether the initial render finished.
func (c *Console) Ready() bool {
	return c.ready.Load()
}

func (c *Console) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// Load is a full page load: fetch the directory, fill the selector, render
// every service, then enable add and delete.
func (c *Console) Load(ctx context.Context) error {
	start := time.Now()

	callCtx, cancel := c.call(ctx)
	dir, err := LoadDirectory(callCtx, c.backend)
	cancel()
	if err != nil {
		c.opts.Metrics.RecordOp("load", "error")
		return err
	}

	c.mu.Lock()
	c.dir = dir
	c.mu.Unlock()

	if err := c.view.PopulateSelector(dir.Names()); err != nil {
		return err
	}
	if err := c.RenderAllServices(ctx, dir); err != nil {
		c.opts.Metrics.RecordOp("load", "error")
		return err
	}

	c.ready.Store(true)
	c.view.SetReady()
	c.opts.Metrics.RecordOp("load", "ok")
	c.opts.Logger.Info("console loaded",
		"services", dir.Len(), "rules", c.view.Len(), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// FetchRulesFor returns the decoded rules of one service in backend order.
// A payload that is not valid base64 fails the whole fetch.
func (c *Console) FetchRulesFor(ctx context.Context, service string) ([]rules.Decoded, error) {
	callCtx, cancel := c.call(ctx)
	defer cancel()

	list, err := c.backend.ListRules(callCtx, service)
	if err != nil {
		return nil, fmt.Errorf("list rules of %s: %w", service, err)
	}

	decoded := make([]rules.Decoded, 0, len(list))
	for _, r := range list {
		d, err := codec.Decode(r)
		if err != nil {
			c.opts.Metrics.DecodeErrors.Inc()
			return nil, fmt.Errorf("service %s: %w", service, err)
		}
		if d.ServiceName == "" {
			d.ServiceName = service
		}
		decoded = append(decoded, d)
	}
	return decoded, nil
}

// RenderAllServices renders the services of dir one after another: the
// rules of a service are fetched only once the previous service's list is
// complete, so list order always follows directory order.
func (c *Console) RenderAllServices(ctx context.Context, dir *Directory) error {
	for _, service := range dir.Names() {
		decoded, err := c.FetchRulesFor(ctx, service)
		if err != nil {
			c.opts.Logger.Error("render failed", "service", service, "error", err)
			return err
		}
		if err := c.view.AddContainer(service); err != nil {
			return err
		}
		for _, d := range decoded {
			if err := c.view.Append(service, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddRequest is the operator's input for a new rule.
type AddRequest struct {
	Service string
	Text    string
	Type    rules.Type
}

// AddRule checks the input, creates the rule on the backend and appends it
// to its service's list.
//
// Missing input marks the fields invalid and returns ErrInvalidInput without
// calling the backend. A rejected rule (400) puts the backend's message in
// the feedback slot and returns *client.ValidationError. Anything else that
// fails shows an error toast.
func (c *Console) AddRule(ctx context.Context, req AddRequest) (*rules.Decoded, error) {
	if !c.Ready() {
		c.opts.Metrics.RecordOp("add", "not_ready")
		c.view.Toast(ToastInfo, c.opts.Printer.Sprintf(i18n.MsgNotReady))
		return nil, ErrNotReady
	}

	invalid := false
	if req.Service == "" || req.Service == rules.DefaultService {
		c.view.MarkInvalid(FieldService)
		invalid = true
	}
	if req.Text == "" {
		c.view.MarkInvalid(FieldRuleText)
		invalid = true
	}
	if invalid {
		c.opts.Metrics.RecordOp("add", "invalid")
		return nil, ErrInvalidInput
	}

	callCtx, cancel := c.call(ctx)
	created, err := c.backend.CreateRule(callCtx, rules.NewRule{
		ServiceName: req.Service,
		Text:        req.Text,
		Type:        req.Type,
	})
	cancel()

	var ve *client.ValidationError
	switch {
	case errors.As(err, &ve):
		c.opts.Metrics.RecordOp("add", "rejected")
		c.view.SetFeedback(ve.Message)
		c.view.MarkInvalid(FieldRuleText)
		return nil, err
	case err != nil:
		c.opts.Metrics.RecordOp("add", "error")
		c.opts.Logger.Error("add rule failed", "service", req.Service, "error", err)
		c.view.Toast(ToastError, c.opts.Printer.Sprintf(i18n.MsgGenericError))
		return nil, err
	}

	d, err := codec.Decode(*created)
	if err == nil {
		err = c.view.Append(req.Service, d)
	}
	if err != nil {
		c.opts.Metrics.RecordOp("add", "error")
		c.opts.Logger.Error("render created rule", "service", req.Service, "id", created.ID, "error", err)
		c.view.Toast(ToastError, c.opts.Printer.Sprintf(i18n.MsgGenericError))
		return nil, err
	}

	c.opts.Metrics.RecordOp("add", "ok")
	c.opts.Logger.Audit("rule.add", req.Service, map[string]any{"id": d.ID, "type": string(req.Type)})
	c.view.Toast(ToastSuccess, c.opts.Printer.Sprintf(i18n.MsgRuleAdded))
	return &d, nil
}

// DeleteRule deletes a rule on the backend and removes its node. On any
// failure the view keeps the node and shows an error toast.
func (c *Console) DeleteRule(ctx context.Context, id int64) error {
	if !c.Ready() {
		c.opts.Metrics.RecordOp("delete", "not_ready")
		c.view.Toast(ToastInfo, c.opts.Printer.Sprintf(i18n.MsgNotReady))
		return ErrNotReady
	}

	callCtx, cancel := c.call(ctx)
	err := c.backend.DeleteRule(callCtx, id)
	cancel()
	if err != nil {
		var se *client.StatusError
		if errors.As(err, &se) {
			c.opts.Metrics.RecordOp("delete", "rejected")
		} else {
			c.opts.Metrics.RecordOp("delete", "error")
			c.opts.Logger.Error("delete rule failed", "id", id, "error", err)
		}
		c.view.Toast(ToastError, c.opts.Printer.Sprintf(i18n.MsgGenericError))
		return err
	}

	c.view.Remove(id)
	c.opts.Metrics.RecordOp("delete", "ok")
	c.opts.Logger.Audit("rule.delete", rules.NodeID(id), nil)
	c.view.Toast(ToastSuccess, c.opts.Printer.Sprintf(i18n.MsgRuleDeleted))
	return nil
}

// ClearInvalid resets the invalid marker of field and the feedback slot.
func (c *Console) ClearInvalid(field string) {
	c.view.ClearInvalid(field)
}
