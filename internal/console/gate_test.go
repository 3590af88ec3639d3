package console

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/client"
)

func TestGate_Submit(t *testing.T) {
	b := &mockBackend{}
	b.On("Login", mock.Anything, "wrong").Return(&client.StatusError{Code: 401, Message: "Wrong password"})
	b.On("Login", mock.Anything, "secret").Return(nil)

	opts, _ := testOptions(t)
	g := NewGate(b, opts)

	ok, err := g.Submit(context.Background(), "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, g.Invalid())

	ok, err = g.Submit(context.Background(), "secret")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, g.Invalid())
}

func TestGate_TransportFailure(t *testing.T) {
	b := &mockBackend{}
	b.On("Login", mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"))

	opts, diag := testOptions(t)
	g := NewGate(b, opts)

	ok, err := g.Submit(context.Background(), "pw")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
	assert.False(t, g.Invalid())
	assert.Equal(t, "login failed", diag.GetLast(1)[0].Message)
}

func TestDirectory(t *testing.T) {
	names := []string{"b", "a"}
	d := NewDirectory(names)
	names[0] = "changed"

	assert.Equal(t, []string{"b", "a"}, d.Names())
	assert.True(t, d.Contains("a"))
	assert.False(t, d.Contains("changed"))
	assert.Equal(t, 2, d.Len())

	got := d.Names()
	got[0] = "x"
	assert.Equal(t, "b", d.Names()[0])
}

func TestLoadDirectory(t *testing.T) {
	b := &mockBackend{}
	b.On("ListServices", mock.Anything).Return([]string{"http", "ssh"}, nil)

	d, err := LoadDirectory(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{"http", "ssh"}, d.Names())
}
