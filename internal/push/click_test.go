package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	url       string
	focused   bool
	navigated string
	noNav     bool
}

func (c *fakeClient) URL() string { return c.url }

func (c *fakeClient) Focus(ctx context.Context) error {
	c.focused = true
	return nil
}

func (c *fakeClient) Navigate(ctx context.Context, url string) error {
	if c.noNav {
		return errors.New("navigation not allowed")
	}
	c.navigated = url
	return nil
}

type fakeRegistry struct {
	clients []ForegroundClient
	listErr error
	opened  []string
}

func (r *fakeRegistry) List(ctx context.Context) ([]ForegroundClient, error) {
	return r.clients, r.listErr
}

func (r *fakeRegistry) OpenWindow(ctx context.Context, url string) error {
	r.opened = append(r.opened, url)
	return nil
}

func clickNotification(url string) Notification {
	return Notification{Title: DefaultTitle, Data: map[string]any{"url": url}}
}

func TestHandleClick_FocusesMatchingClient(t *testing.T) {
	c := &fakeClient{url: "https://app/notes"}
	reg := &fakeRegistry{clients: []ForegroundClient{&fakeClient{url: "https://app/home"}, c}}

	dismissed := false
	err := HandleClick(context.Background(), reg, clickNotification("https://app/notes"), func() { dismissed = true })
	require.NoError(t, err)

	assert.True(t, c.focused)
	assert.Equal(t, "https://app/notes", c.navigated)
	assert.Empty(t, reg.opened)
	assert.True(t, dismissed)
}

func TestHandleClick_TrailingSlashInsensitive(t *testing.T) {
	c := &fakeClient{url: "https://app/notes/"}
	reg := &fakeRegistry{clients: []ForegroundClient{c}}

	err := HandleClick(context.Background(), reg, clickNotification("https://app/notes"), nil)
	require.NoError(t, err)
	assert.True(t, c.focused)
}

func TestHandleClick_NavigationRefusalStillFocuses(t *testing.T) {
	c := &fakeClient{url: "https://app/notes", noNav: true}
	reg := &fakeRegistry{clients: []ForegroundClient{c}}

	err := HandleClick(context.Background(), reg, clickNotification("https://app/notes"), nil)
	require.NoError(t, err)
	assert.True(t, c.focused)
}

func TestHandleClick_OpensWindowWhenNoMatch(t *testing.T) {
	reg := &fakeRegistry{clients: []ForegroundClient{&fakeClient{url: "https://app/home"}}}

	dismissed := false
	err := HandleClick(context.Background(), reg, clickNotification("https://app/calendar"), func() { dismissed = true })
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app/calendar"}, reg.opened)
	assert.True(t, dismissed)
}

func TestHandleClick_DefaultTargetIsRoot(t *testing.T) {
	reg := &fakeRegistry{}
	n := Notification{Title: DefaultTitle, Data: map[string]any{}}

	err := HandleClick(context.Background(), reg, n, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, reg.opened)
}

func TestHandleClick_ListFailureOpensWindow(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("registry gone")}

	dismissed := false
	err := HandleClick(context.Background(), reg, clickNotification("/"), func() { dismissed = true })
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, reg.opened)
	assert.True(t, dismissed)
}
