package portal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/domain"
)

type MockSaver struct {
	mock.Mock
}

func (m *MockSaver) Save(p domain.NetworkProfile) error {
	args := m.Called(p)
	return args.Error(0)
}

func postForm(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/save", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPortal_ServesForm(t *testing.T) {
	h := NewHandler(new(MockSaver), nil, observability.Nop{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `action="/save"`)
	assert.Contains(t, w.Body.String(), `name="ssid"`)
	assert.Contains(t, w.Body.String(), `name="password"`)
}

func TestPortal_SavePersistsAndSchedulesReboot(t *testing.T) {
	saver := new(MockSaver)
	rebooted := false
	h := NewHandler(saver, func() { rebooted = true }, observability.Nop{})

	want := domain.NetworkProfile{NetworkName: "home", Secret: "hunter22", Configured: true}
	saver.On("Save", want).Return(nil)

	w := postForm(h, url.Values{"ssid": {"home"}, "password": {"hunter22"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Configuration saved!")
	assert.True(t, rebooted, "expected reboot to be scheduled")
	saver.AssertExpectations(t)
}

func TestPortal_SaveTruncatesToStorageBounds(t *testing.T) {
	saver := new(MockSaver)
	h := NewHandler(saver, func() {}, observability.Nop{})

	saver.On("Save", mock.MatchedBy(func(p domain.NetworkProfile) bool {
		return len(p.NetworkName) == domain.MaxNetworkNameLen && len(p.Secret) == domain.MaxSecretLen && p.Configured
	})).Return(nil)

	w := postForm(h, url.Values{"ssid": {strings.Repeat("s", 50)}, "password": {strings.Repeat("p", 90)}})

	assert.Equal(t, http.StatusOK, w.Code)
	saver.AssertExpectations(t)
}

func TestPortal_SaveRejectsMissingFields(t *testing.T) {
	cases := map[string]url.Values{
		"no password":    {"ssid": {"home"}},
		"no ssid":        {"password": {"hunter22"}},
		"empty ssid":     {"ssid": {""}, "password": {"hunter22"}},
		"nothing at all": {},
	}

	for name, form := range cases {
		t.Run(name, func(t *testing.T) {
			saver := new(MockSaver)
			rebooted := false
			h := NewHandler(saver, func() { rebooted = true }, observability.Nop{})

			w := postForm(h, form)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Missing SSID or Password", strings.TrimSpace(w.Body.String()))
			assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
			assert.False(t, rebooted)
			saver.AssertNotCalled(t, "Save", mock.Anything)
		})
	}
}

func TestPortal_SaveFailureDoesNotReboot(t *testing.T) {
	saver := new(MockSaver)
	rebooted := false
	h := NewHandler(saver, func() { rebooted = true }, observability.Nop{})
	saver.On("Save", mock.Anything).Return(errors.New("flash worn out"))

	w := postForm(h, url.Values{"ssid": {"home"}, "password": {"hunter22"}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, rebooted)
}

func TestServer_StartIsIdempotent(t *testing.T) {
	h := NewHandler(new(MockSaver), nil, observability.Nop{})
	srv := NewServer("127.0.0.1:0", h, observability.Nop{})

	require.NoError(t, srv.Start())
	addr := srv.Addr()
	require.NotNil(t, addr)
	require.NoError(t, srv.Start())
	assert.Equal(t, addr.String(), srv.Addr().String())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + addr.String() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "WiFi Configuration")
}
