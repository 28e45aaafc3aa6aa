package soap

import (
	"fmt"
	"strings"

	"github.com/anacrolix/microdlna/internal/mime"
	"github.com/anacrolix/microdlna/internal/pathutil"
)

// Action identifies one of the small set of SOAP actions this server
// answers.
type Action string

const (
	ActionBrowse                Action = "Browse"
	ActionSearch                Action = "Search"
	ActionGetSearchCapabilities Action = "GetSearchCapabilities"
	ActionGetSortCapabilities   Action = "GetSortCapabilities"
	ActionGetProtocolInfo       Action = "GetProtocolInfo"
)

// ParseSOAPAction extracts the action name from a SOAPAction header
// value such as `"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`.
func ParseSOAPAction(header string) Action {
	h := strings.Trim(strings.TrimSpace(header), `"`)
	if i := strings.LastIndexByte(h, '#'); i >= 0 {
		h = h[i+1:]
	}
	return Action(h)
}

// Fault is a thrown SOAP/UPnP error; Status is the HTTP status code the
// front-end should respond with.
type Fault struct {
	Status int
	Code   int
	Desc   string
}

func (f *Fault) Error() string { return fmt.Sprintf("soap: %d %s", f.Code, f.Desc) }

// ErrUnsupportedAction is returned for the Search action.
var ErrUnsupportedAction = &Fault{Status: 200, Code: 708, Desc: "Unsupported or invalid search criteria"}

// ErrInvalidAction is returned for any action this server doesn't know.
var ErrInvalidAction = &Fault{Status: 401, Code: 401, Desc: "Invalid Action"}

const envelopeTemplate = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body>%s</s:Body></s:Envelope>`

func wrapEnvelope(body string) string {
	return fmt.Sprintf(envelopeTemplate, body)
}

// BrowseResponse wraps an already-rendered (single-escaped) DIDL-Lite
// document as a Browse SOAP response. The DIDL text is escaped a second
// time here, since it travels as text content inside <Result>.
func BrowseResponse(didl string, numberReturned, totalMatches int) string {
	body := fmt.Sprintf(
		`<u:BrowseResponse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">`+
			`<Result>%s</Result>`+
			`<NumberReturned>%d</NumberReturned>`+
			`<TotalMatches>%d</TotalMatches>`+
			`<UpdateID>0</UpdateID>`+
			`</u:BrowseResponse>`,
		pathutil.EscapeXMLOnce(didl), numberReturned, totalMatches)
	return wrapEnvelope(body)
}

// SearchCapabilitiesResponse answers GetSearchCapabilities.
func SearchCapabilitiesResponse() string {
	return wrapEnvelope(`<u:GetSearchCapabilitiesResponse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">` +
		`<SearchCaps>@id, @parentID, @refID </SearchCaps></u:GetSearchCapabilitiesResponse>`)
}

// SortCapabilitiesResponse answers GetSortCapabilities.
func SortCapabilitiesResponse() string {
	return wrapEnvelope(`<u:GetSortCapabilitiesResponse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">` +
		`<SortCaps>dc:title,</SortCaps></u:GetSortCapabilitiesResponse>`)
}

// ProtocolInfoResponse answers GetProtocolInfo: Source lists every MIME
// pair this server could ever recognise, Sink is always empty.
func ProtocolInfoResponse(types []mime.Type) string {
	sources := make([]string, len(types))
	for i, t := range types {
		sources[i] = fmt.Sprintf("http-get:*:%s:*", t.String())
	}
	body := fmt.Sprintf(`<u:GetProtocolInfoResponse xmlns:u="urn:schemas-upnp-org:service:ConnectionManager:1">`+
		`<Source>%s</Source><Sink></Sink></u:GetProtocolInfoResponse>`,
		strings.Join(sources, ","))
	return wrapEnvelope(body)
}

// FaultResponse renders f as a SOAP Fault body.
func FaultResponse(f *Fault) string {
	body := fmt.Sprintf(`<s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>`+
		`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">`+
		`<errorCode>%d</errorCode><errorDescription>%s</errorDescription>`+
		`</UPnPError></detail></s:Fault>`, f.Code, pathutil.EscapeXMLOnce(f.Desc))
	return wrapEnvelope(body)
}
