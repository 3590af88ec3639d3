package console

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"

	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
	"grimm.is/rulegate/internal/rules"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Login(ctx context.Context, password string) error {
	return m.Called(ctx, password).Error(0)
}

func (m *mockBackend) ListServices(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *mockBackend) ListRules(ctx context.Context, service string) ([]rules.Rule, error) {
	args := m.Called(ctx, service)
	list, _ := args.Get(0).([]rules.Rule)
	return list, args.Error(1)
}

func (m *mockBackend) CreateRule(ctx context.Context, nr rules.NewRule) (*rules.Rule, error) {
	args := m.Called(ctx, nr)
	r, _ := args.Get(0).(*rules.Rule)
	return r, args.Error(1)
}

func (m *mockBackend) DeleteRule(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func testOptions(t *testing.T) (Options, *logging.RingBuffer) {
	t.Helper()
	diag := logging.NewRingBuffer(100)
	return Options{
		Logger:  logging.New(logging.Config{Output: io.Discard, Diagnostics: diag}),
		Metrics: metrics.New(),
	}, diag
}

// recorder collects published patches.
type recorder struct {
	patches []Patch
}

func (r *recorder) record(p Patch) {
	r.patches = append(r.patches, p)
}

func (r *recorder) ops() []string {
	out := make([]string, 0, len(r.patches))
	for _, p := range r.patches {
		out = append(out, string(p.Op)+":"+p.Target)
	}
	return out
}
