package hilink

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_Defaults(t *testing.T) {
	session := NewSession("")
	assert.Equal(t, "http://"+DefaultHost, session.BaseURL)
	assert.Equal(t, DefaultTimeout, session.HTTPClient.Timeout)

	session = NewSession("10.0.0.1:8080")
	assert.Equal(t, "http://10.0.0.1:8080", session.BaseURL)
}

func TestConnect_StoresSessionState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/webserver/SesTokInfo", r.URL.Path)
		io.WriteString(w, xml.Header+"<response><SesInfo>SessionID=abc</SesInfo><TokInfo>tok-1</TokInfo></response>")
	}))
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	require.NoError(t, session.Connect(context.Background()))

	assert.Equal(t, "tok-1", session.VerificationToken())
}

func TestConnect_ToleratesMissingEndpoint(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	// Old firmwares have no SesTokInfo; the session proceeds tokenless.
	require.NoError(t, session.Connect(context.Background()))
	assert.Empty(t, session.VerificationToken())
}

func TestGet_DecodesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, xml.Header+"<error><code>100003</code><message></message></error>")
	}))
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	var out struct {
		XMLName xml.Name `xml:"response"`
	}
	err := session.Get(context.Background(), "monitoring/status", &out)

	respErr, ok := asResponseError(err)
	require.True(t, ok, "expected *ResponseError, got %v", err)
	assert.Equal(t, 100003, respErr.Code)
	assert.Equal(t, "monitoring/status", respErr.Endpoint)
	assert.True(t, IsLoginRequired(err))
}

func TestGet_MissingEndpointIsNotSupported(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	err := session.Get(context.Background(), "user/state-login", nil)

	assert.True(t, IsNotSupported(err))
}

func TestSession_RotatesVerificationToken(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(tokenHeader))
		mu.Unlock()
		w.Header().Set(tokenHeader, "tok-next")
		io.WriteString(w, xml.Header+"<response></response>")
	}))
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	session.mu.Lock()
	session.tokens = []string{"tok-first"}
	session.lastToken = "tok-first"
	session.mu.Unlock()

	require.NoError(t, session.Get(context.Background(), "user/remind", nil))
	require.NoError(t, session.Get(context.Background(), "user/remind", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tok-first", "tok-next"}, seen)
}

func TestSession_LoginTokenPairReplacesQueue(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	first := true

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(tokenHeader))
		wasFirst := first
		first = false
		mu.Unlock()

		if wasFirst {
			// Login-style response hands out two follow-up tokens.
			w.Header().Set(tokenHeader+"one", "tok-a")
			w.Header().Set(tokenHeader+"two", "tok-b")
		}
		io.WriteString(w, xml.Header+"<response>OK</response>")
	}))
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	require.NoError(t, session.Get(context.Background(), "user/remind", nil))
	require.NoError(t, session.Get(context.Background(), "user/remind", nil))
	require.NoError(t, session.Get(context.Background(), "user/remind", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "tok-a", "tok-b"}, seen)
}

func TestSession_CarriesCookie(t *testing.T) {
	var mu sync.Mutex
	var cookies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cookies = append(cookies, r.Header.Get("Cookie"))
		mu.Unlock()
		w.Header().Set("Set-Cookie", "SessionID=zzz; path=/")
		io.WriteString(w, xml.Header+"<response></response>")
	}))
	defer server.Close()

	session := NewSessionWithURL(server.URL)
	require.NoError(t, session.Get(context.Background(), "user/remind", nil))
	require.NoError(t, session.Get(context.Background(), "user/remind", nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, cookies, 2)
	assert.Empty(t, cookies[0])
	assert.Equal(t, "SessionID=zzz", cookies[1])
}

func TestPostStatus_ReturnsAcknowledgment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), xml.Header)
		assert.Contains(t, string(body), "<request>")
		io.WriteString(w, xml.Header+"<response>OK</response>")
	}))
	defer server.Close()

	type payload struct {
		XMLName xml.Name `xml:"request"`
		Value   int      `xml:"Value"`
	}

	session := NewSessionWithURL(server.URL)
	status, err := session.PostStatus(context.Background(), "device/control", &payload{Value: 1}, false)

	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
}

func TestDevice_Information(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/device/information", r.URL.Path)
		io.WriteString(w, xml.Header+`<response>
<DeviceName>B535-232</DeviceName>
<SerialNumber>SN123</SerialNumber>
<Imei>866000000000000</Imei>
<HardwareVersion>WL2B535M</HardwareVersion>
<SoftwareVersion>11.0.1.1</SoftwareVersion>
<WebUIVersion>21.100.44</WebUIVersion>
<ProductFamily>LTE</ProductFamily>
</response>`)
	}))
	defer server.Close()

	device := NewDevice(NewSessionWithURL(server.URL))
	info, err := device.Information(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "B535-232", info.DeviceName)
	assert.Equal(t, "SN123", info.SerialNumber)
	assert.Equal(t, "11.0.1.1", info.SoftwareVersion)
	assert.Equal(t, "LTE", info.ProductFamily)
}

func TestDevice_Reboot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/device/control", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<Control>1</Control>")
		io.WriteString(w, xml.Header+"<response>OK</response>")
	}))
	defer server.Close()

	device := NewDevice(NewSessionWithURL(server.URL))
	assert.NoError(t, device.Reboot(context.Background()))
}
