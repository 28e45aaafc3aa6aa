package content

import (
	"testing"

	"github.com/anacrolix/microdlna/internal/mime"
	"github.com/stretchr/testify/assert"
)

func TestRenderDIDLContainerAndItem(t *testing.T) {
	page := Page{
		Entries: []Entry{
			{Name: "Music", Kind: KindDirectory},
			{Name: "clip.mp4", Kind: KindFile, Size: 1024, MIME: mime.Type{Class: mime.Video, Subtype: "mp4"}},
		},
	}
	out := RenderDIDL(page, "", "192.168.1.2:2800")
	assert.Contains(t, out, `<container id="Music" parentID="0"`)
	assert.Contains(t, out, `object.container.storageFolder`)
	assert.Contains(t, out, `<item id="clip.mp4" parentID="0"`)
	assert.Contains(t, out, `object.item.videoItem`)
	assert.Contains(t, out, `size="1024"`)
	assert.Contains(t, out, `http://192.168.1.2:2800/MediaItems/clip.mp4`)
}

func TestRenderDIDLNestedDirID(t *testing.T) {
	page := Page{Entries: []Entry{{Name: "song.mp3", Kind: KindFile, Size: 10, MIME: mime.Type{Class: mime.Audio, Subtype: "mpeg"}}}}
	out := RenderDIDL(page, "Music", "host:2800")
	assert.Contains(t, out, `id="Music/song.mp3"`)
	assert.Contains(t, out, `parentID="Music"`)
	assert.Contains(t, out, "/MediaItems/Music/song.mp3")
}

func TestRenderDIDLEscapesTitle(t *testing.T) {
	page := Page{Entries: []Entry{{Name: `Tom & Jerry`, Kind: KindDirectory}}}
	out := RenderDIDL(page, "", "host:2800")
	assert.Contains(t, out, "Tom &amp; Jerry")
}
