package soap

import (
	"testing"

	"github.com/anacrolix/microdlna/internal/mime"
	"github.com/stretchr/testify/assert"
)

func TestBrowseResponseContainsDoublyEscapedResult(t *testing.T) {
	didl := `<DIDL-Lite><item id="a &amp; b"></item></DIDL-Lite>`
	resp := BrowseResponse(didl, 1, 1)
	assert.Contains(t, resp, "&lt;DIDL-Lite&gt;")
	assert.Contains(t, resp, "&amp;amp;")
	assert.Contains(t, resp, "<NumberReturned>1</NumberReturned>")
	assert.Contains(t, resp, "<TotalMatches>1</TotalMatches>")
}

func TestSearchCapabilitiesResponse(t *testing.T) {
	assert.Contains(t, SearchCapabilitiesResponse(), "<SearchCaps>@id, @parentID, @refID </SearchCaps>")
}

func TestSortCapabilitiesResponse(t *testing.T) {
	assert.Contains(t, SortCapabilitiesResponse(), "<SortCaps>dc:title,</SortCaps>")
}

func TestProtocolInfoResponse(t *testing.T) {
	types := []mime.Type{{Class: mime.Video, Subtype: "mp4"}, {Class: mime.Audio, Subtype: "mpeg"}}
	resp := ProtocolInfoResponse(types)
	assert.Contains(t, resp, "http-get:*:video/mp4:*,http-get:*:audio/mpeg:*")
	assert.Contains(t, resp, "<Sink></Sink>")
}

func TestFaultResponse(t *testing.T) {
	resp := FaultResponse(ErrInvalidAction)
	assert.Contains(t, resp, "<errorCode>401</errorCode>")
}
