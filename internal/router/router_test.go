package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duet/internal/cache"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New("http://app.local")
	require.NoError(t, err)
	return r
}

func request(t *testing.T, method, url string, navigate bool) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if navigate {
		req.Header.Set("Sec-Fetch-Mode", "navigate")
	}
	return req
}

func TestClassify(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name      string
		req       *http.Request
		intervene bool
		class     cache.Class
		strategy  Strategy
	}{
		{
			name:      "POST passes through",
			req:       request(t, http.MethodPost, "http://app.local/notes", false),
			intervene: false,
		},
		{
			name:      "cross-origin passes through",
			req:       request(t, http.MethodGet, "http://cdn.other/logo.png", false),
			intervene: false,
		},
		{
			name:      "versioned build asset",
			req:       request(t, http.MethodGet, "http://app.local/assets/index-ab12.js", false),
			intervene: true,
			class:     cache.ClassStatic,
			strategy:  StrategyStaleWhileRevalidate,
		},
		{
			name:      "image is cache-first",
			req:       request(t, http.MethodGet, "http://app.local/img/photo.jpeg", false),
			intervene: true,
			class:     cache.ClassStatic,
			strategy:  StrategyCacheFirst,
		},
		{
			name:      "font is cache-first",
			req:       request(t, http.MethodGet, "http://app.local/fonts/inter.woff2", false),
			intervene: true,
			class:     cache.ClassStatic,
			strategy:  StrategyCacheFirst,
		},
		{
			name:      "stylesheet outside assets is SWR",
			req:       request(t, http.MethodGet, "http://app.local/theme.css", false),
			intervene: true,
			class:     cache.ClassStatic,
			strategy:  StrategyStaleWhileRevalidate,
		},
		{
			name:      "allow-listed navigation",
			req:       request(t, http.MethodGet, "http://app.local/calendar", true),
			intervene: true,
			class:     cache.ClassPages,
			strategy:  StrategyNetworkFirst,
		},
		{
			name:      "root navigation",
			req:       request(t, http.MethodGet, "http://app.local/", true),
			intervene: true,
			class:     cache.ClassPages,
			strategy:  StrategyNetworkFirst,
		},
		{
			name:      "navigation with trailing slash",
			req:       request(t, http.MethodGet, "http://app.local/notes/", true),
			intervene: true,
			class:     cache.ClassPages,
			strategy:  StrategyNetworkFirst,
		},
		{
			name:      "navigation off the allow-list is runtime",
			req:       request(t, http.MethodGet, "http://app.local/settings/advanced", true),
			intervene: true,
			class:     cache.ClassRuntime,
			strategy:  StrategyNetworkFirst,
		},
		{
			name:      "plain same-origin GET is runtime",
			req:       request(t, http.MethodGet, "http://app.local/api/couple", false),
			intervene: true,
			class:     cache.ClassRuntime,
			strategy:  StrategyNetworkFirst,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := r.Classify(tt.req)
			require.Equal(t, tt.intervene, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.class, d.Class)
			assert.Equal(t, tt.strategy, d.Strategy)
		})
	}
}

func TestClassify_AssetsPrefixBeatsExtensionRule(t *testing.T) {
	r := newRouter(t)

	// A png under /assets/ is fingerprinted; the prefix rule wins and it
	// gets SWR rather than cache-first.
	d, ok := r.Classify(request(t, http.MethodGet, "http://app.local/assets/bg-91ff.png", false))
	require.True(t, ok)
	assert.Equal(t, StrategyStaleWhileRevalidate, d.Strategy)
	assert.Equal(t, cache.ClassStatic, d.Class)
}
