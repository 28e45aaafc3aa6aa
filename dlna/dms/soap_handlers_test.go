package dms

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRootDescServesXML(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", rootDescPath, nil)
	rec := httptest.NewRecorder()
	srv.handleRootDesc(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "<friendlyName>test server</friendlyName>")
}

func TestHandleSCPDServesKnownPath(t *testing.T) {
	srv := newTestServer(t)
	h := srv.handleSCPD("/ContentDir.xml")
	req := httptest.NewRequest("GET", "/ContentDir.xml", nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "<name>Browse</name>")
}

func TestHandleIconServesMatchingVariant(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", iconsPath+"sm.png", nil)
	rec := httptest.NewRecorder()
	srv.handleIcon(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestHandleIconUnknownReturns404(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", iconsPath+"huge.png", nil)
	rec := httptest.NewRecorder()
	srv.handleIcon(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestHandleControlGetSearchCapabilities(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", serviceCtlPath+"ContentDir", nil)
	req.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:ContentDirectory:1#GetSearchCapabilities"`)
	rec := httptest.NewRecorder()
	srv.handleControl(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "GetSearchCapabilitiesResponse")
}

func TestHandleControlUnknownActionFaults(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", serviceCtlPath+"X_MS_MediaReceiverRegistrar", nil)
	req.Header.Set("SOAPAction", `"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1#IsAuthorized"`)
	rec := httptest.NewRecorder()
	srv.handleControl(rec, req)
	assert.Equal(t, 401, rec.Code)
}

func TestHandleControlBrowseRendersDIDL(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Config.MediaRoot, "clip.mp4"), []byte("x"), 0o644))

	body := `<?xml version="1.0"?><s:Envelope><s:Body><u:Browse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">` +
		`<ObjectID></ObjectID><BrowseFlag>BrowseDirectChildren</BrowseFlag><StartingIndex>0</StartingIndex>` +
		`<RequestedCount>10</RequestedCount></u:Browse></s:Body></s:Envelope>`

	req := httptest.NewRequest("POST", serviceCtlPath+"ContentDir", strings.NewReader(body))
	req.ContentLength = int64(len(body))
	req.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`)
	rec := httptest.NewRecorder()
	srv.handleControl(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "clip.mp4")
}
