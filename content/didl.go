package content

import (
	"fmt"
	"strings"

	"github.com/anacrolix/microdlna/internal/pathutil"
)

// protocolInfoFlags is the fixed DLNA.ORG_FLAGS value items advertise in
// their Browse protocolInfo (distinct from the richer per-stream flags
// computed for an actual media response).
const protocolInfoFlags = "01700000000000000000000000000000"

// RenderDIDL renders page as a DIDL-Lite document. dirID is the
// already-sanitised, XML-escaped request path (the empty string for the
// root); it doubles as both the rendered container `id` and the path
// component of each item's streaming URL. host is "ip[:port]".
func RenderDIDL(page Page, dirID, host string) string {
	var b strings.Builder
	b.WriteString(`<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">`)

	parentID := dirID
	if parentID == "" {
		parentID = "0"
	}
	escapedParent := pathutil.EscapeXMLOnce(parentID)

	for _, e := range page.Entries {
		switch e.Kind {
		case KindDirectory:
			renderContainer(&b, dirID, escapedParent, e)
		case KindFile:
			renderItem(&b, dirID, escapedParent, host, e)
		}
	}
	b.WriteString(`</DIDL-Lite>`)
	return b.String()
}

func joinID(dirID, name string) string {
	if dirID == "" {
		return name
	}
	return dirID + "/" + name
}

func renderContainer(b *strings.Builder, dirID, escapedParent string, e Entry) {
	id := pathutil.EscapeXMLOnce(joinID(dirID, e.Name))
	title := pathutil.EscapeXMLOnce(e.Name)
	fmt.Fprintf(b, `<container id="%s" parentID="%s" restricted="1" searchable="0" childCount="0">`+
		`<dc:title>%s</dc:title>`+
		`<upnp:class>object.container.storageFolder</upnp:class>`+
		`<upnp:storageUsed>-1</upnp:storageUsed>`+
		`</container>`, id, escapedParent, title)
}

func renderItem(b *strings.Builder, dirID, escapedParent, host string, e Entry) {
	id := pathutil.EscapeXMLOnce(joinID(dirID, e.Name))
	title := pathutil.EscapeXMLOnce(e.Name)
	class := fmt.Sprintf("object.item.%sItem", e.MIME.Class)
	url := fmt.Sprintf("http://%s/MediaItems/%s", host, escapeURLPath(joinID(dirID, e.Name)))
	protocolInfo := fmt.Sprintf("http-get:*:%s:DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=%s", e.MIME.String(), protocolInfoFlags)

	fmt.Fprintf(b, `<item id="%s" parentID="%s" restricted="1">`+
		`<dc:title>%s</dc:title>`+
		`<upnp:class>%s</upnp:class>`+
		`<res size="%d" protocolInfo="%s">%s</res>`+
		`</item>`, id, escapedParent, title, class, e.Size, protocolInfo, pathutil.EscapeXMLOnce(url))
}

func escapeURLPath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = pathutil.EscapeURL(s)
	}
	return strings.Join(parts, "/")
}
