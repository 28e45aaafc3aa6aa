// Package mime resolves a filename extension to a UPnP-AV major class
// and MIME subtype, using the fixed extension table any DLNA renderer
// is expected to understand.
package mime

import (
	"sort"
	"strings"
)

// Class is the UPnP-AV major content class an item belongs to.
type Class string

const (
	Video Class = "video"
	Audio Class = "audio"
	Image Class = "image"
	Text  Class = "text"
)

// Type is a resolved (major class, subtype) pair, e.g. (Video, "mp4").
type Type struct {
	Class   Class
	Subtype string
}

// String renders the pair as "major/subtype".
func (t Type) String() string {
	return string(t.Class) + "/" + t.Subtype
}

type entry struct {
	ext     string
	class   Class
	subtype string
}

// table is sorted by extension so Lookup can binary search it, mirroring
// the bsearch over a static sorted array in the C implementation this is
// grounded on.
var table = []entry{
	{"3ds", Image, "x-3ds"},
	{"3g2", Video, "3gpp2"},
	{"3gp", Video, "3gpp"},
	{"aac", Audio, "x-aac"},
	{"adp", Audio, "adpcm"},
	{"aif", Audio, "x-aiff"},
	{"aifc", Audio, "x-aiff"},
	{"aiff", Audio, "x-aiff"},
	{"asf", Video, "x-ms-asf"},
	{"asx", Video, "x-ms-asf"},
	{"au", Audio, "basic"},
	{"avi", Video, "x-msvideo"},
	{"bmp", Image, "bmp"},
	{"btif", Image, "prs.btif"},
	{"caf", Audio, "x-caf"},
	{"cgm", Image, "cgm"},
	{"cmx", Image, "x-cmx"},
	{"dif", Video, "x-dv"},
	{"djv", Image, "vnd.djvu"},
	{"djvu", Image, "vnd.djvu"},
	{"dra", Audio, "vnd.dra"},
	{"dsd", Audio, "x-dsd"},
	{"dts", Audio, "vnd.dts"},
	{"dtshd", Audio, "vnd.dts.hd"},
	{"dv", Video, "x-dv"},
	{"dvb", Video, "vnd.dvb.file"},
	{"dwg", Image, "vnd.dwg"},
	{"dxf", Image, "vnd.dxf"},
	{"eol", Audio, "vnd.digital-winds"},
	{"f4v", Video, "x-f4v"},
	{"fbs", Image, "vnd.fastbidsheet"},
	{"fh", Image, "x-freehand"},
	{"fh4", Image, "x-freehand"},
	{"fh5", Image, "x-freehand"},
	{"fh7", Image, "x-freehand"},
	{"fhc", Image, "x-freehand"},
	{"flac", Audio, "x-flac"},
	{"fli", Video, "x-fli"},
	{"flv", Video, "x-flv"},
	{"fpx", Image, "vnd.fpx"},
	{"fst", Image, "vnd.fst"},
	{"fvt", Video, "vnd.fvt"},
	{"g3", Image, "g3fax"},
	{"gif", Image, "gif"},
	{"h261", Video, "h261"},
	{"h263", Video, "h263"},
	{"h264", Video, "h264"},
	{"ico", Image, "x-icon"},
	{"ief", Image, "ief"},
	{"jp2", Image, "jp2"},
	{"jpe", Image, "jpeg"},
	{"jpeg", Image, "jpeg"},
	{"jpg", Image, "jpeg"},
	{"jpgm", Video, "jpm"},
	{"jpgv", Video, "jpeg"},
	{"jpm", Video, "jpm"},
	{"kar", Audio, "midi"},
	{"ktx", Image, "ktx"},
	{"lvp", Audio, "vnd.lucent.voice"},
	{"m1v", Video, "mpeg"},
	{"m2a", Audio, "mpeg"},
	{"m2v", Video, "mpeg"},
	{"m3a", Audio, "mpeg"},
	{"m3u", Audio, "x-mpegurl"},
	{"m4a", Audio, "mp4a-latm"},
	{"m4p", Audio, "mp4a-latm"},
	{"m4u", Video, "vnd.mpegurl"},
	{"m4v", Video, "x-m4v"},
	{"mac", Image, "x-macpaint"},
	{"mdi", Image, "vnd.ms-modi"},
	{"mid", Audio, "midi"},
	{"midi", Audio, "midi"},
	{"mj2", Video, "mj2"},
	{"mjp2", Video, "mj2"},
	{"mk3d", Video, "x-matroska"},
	{"mka", Audio, "x-matroska"},
	{"mks", Video, "x-matroska"},
	{"mkv", Video, "x-matroska"},
	{"mmr", Image, "vnd.fujixerox.edmics-mmr"},
	{"mng", Video, "x-mng"},
	{"mov", Video, "quicktime"},
	{"movie", Video, "x-sgi-movie"},
	{"mp2", Audio, "mpeg"},
	{"mp2a", Audio, "mpeg"},
	{"mp3", Audio, "mpeg"},
	{"mp4", Video, "mp4"},
	{"mp4a", Audio, "mp4"},
	{"mp4v", Video, "mp4"},
	{"mpe", Video, "mpeg"},
	{"mpeg", Video, "mpeg"},
	{"mpg", Video, "mpeg"},
	{"mpg4", Video, "mp4"},
	{"mpga", Audio, "mpeg"},
	{"mxu", Video, "vnd.mpegurl"},
	{"npx", Image, "vnd.net-fpx"},
	{"oga", Audio, "ogg"},
	{"ogg", Audio, "ogg"},
	{"ogv", Video, "ogg"},
	{"pbm", Image, "x-portable-bitmap"},
	{"pcm", Audio, "L16"},
	{"pct", Image, "x-pict"},
	{"pcx", Image, "x-pcx"},
	{"pgm", Image, "x-portable-graymap"},
	{"pic", Image, "x-pict"},
	{"pict", Image, "pict"},
	{"png", Image, "png"},
	{"pnm", Image, "x-portable-anymap"},
	{"pnt", Image, "x-macpaint"},
	{"pntg", Image, "x-macpaint"},
	{"ppm", Image, "x-portable-pixmap"},
	{"psd", Image, "vnd.adobe.photoshop"},
	{"pya", Audio, "vnd.ms-playready.media.pya"},
	{"pyv", Video, "vnd.ms-playready.media.pyv"},
	{"qt", Video, "quicktime"},
	{"qti", Image, "x-quicktime"},
	{"qtif", Image, "x-quicktime"},
	{"ra", Audio, "x-pn-realaudio"},
	{"ram", Audio, "x-pn-realaudio"},
	{"ras", Image, "x-cmu-raster"},
	{"rgb", Image, "x-rgb"},
	{"rip", Audio, "vnd.rip"},
	{"rlc", Image, "vnd.fujixerox.edmics-rlc"},
	{"rmi", Audio, "midi"},
	{"rmp", Audio, "x-pn-realaudio-plugin"},
	{"s3m", Audio, "s3m"},
	{"sgi", Image, "sgi"},
	{"sid", Image, "x-mrsid-image"},
	{"sil", Audio, "silk"},
	{"smv", Video, "x-smv"},
	{"snd", Audio, "basic"},
	{"spx", Audio, "ogg"},
	{"srt", Text, "srt"},
	{"sub", Image, "vnd.dvb.subtitle"},
	{"svg", Image, "svg+xml"},
	{"svgz", Image, "svg+xml"},
	{"tga", Image, "x-tga"},
	{"tif", Image, "tiff"},
	{"tiff", Image, "tiff"},
	{"ts", Video, "mp2t"},
	{"uva", Audio, "vnd.dece.audio"},
	{"uvg", Image, "vnd.dece.graphic"},
	{"uvh", Video, "vnd.dece.hd"},
	{"uvi", Image, "vnd.dece.graphic"},
	{"uvm", Video, "vnd.dece.mobile"},
	{"uvp", Video, "vnd.dece.pd"},
	{"uvs", Video, "vnd.dece.sd"},
	{"uvu", Video, "vnd.uvvu.mp4"},
	{"uvv", Video, "vnd.dece.video"},
	{"uvva", Audio, "vnd.dece.audio"},
	{"uvvg", Image, "vnd.dece.graphic"},
	{"uvvh", Video, "vnd.dece.hd"},
	{"uvvi", Image, "vnd.dece.graphic"},
	{"uvvm", Video, "vnd.dece.mobile"},
	{"uvvp", Video, "vnd.dece.pd"},
	{"uvvs", Video, "vnd.dece.sd"},
	{"uvvu", Video, "vnd.uvvu.mp4"},
	{"uvvv", Video, "vnd.dece.video"},
	{"viv", Video, "vnd.vivo"},
	{"vob", Video, "x-ms-vob"},
	{"wav", Audio, "x-wav"},
	{"wax", Audio, "x-ms-wax"},
	{"wbmp", Image, "vnd.wap.wbmp"},
	{"wdp", Image, "vnd.ms-photo"},
	{"weba", Audio, "webm"},
	{"webm", Video, "webm"},
	{"webp", Image, "webp"},
	{"wm", Video, "x-ms-wm"},
	{"wma", Audio, "x-ms-wma"},
	{"wmv", Video, "x-ms-wmv"},
	{"wmx", Video, "x-ms-wmx"},
	{"wvx", Video, "x-ms-wvx"},
	{"xbm", Image, "x-xbitmap"},
	{"xif", Image, "vnd.xiff"},
	{"xm", Audio, "xm"},
	{"xpm", Image, "x-xpixmap"},
	{"xwd", Image, "x-xwindowdump"},
}

func init() {
	if !sort.SliceIsSorted(table, func(i, j int) bool { return table[i].ext < table[j].ext }) {
		panic("mime: table is not sorted by extension")
	}
}

// extOf returns the lowercased extension following the last '.' among
// the last 6 characters of filename, or "" if there is none.
func extOf(filename string) string {
	limit := len(filename) - 6
	if limit < 0 {
		limit = 0
	}
	for i := len(filename) - 1; i >= limit; i-- {
		if filename[i] == '.' {
			return strings.ToLower(filename[i+1:])
		}
	}
	return ""
}

// Lookup resolves filename's extension to a (class, subtype) pair. The
// second return is false if the extension is absent or unrecognised.
func Lookup(filename string) (Type, bool) {
	ext := extOf(filename)
	if ext == "" {
		return Type{}, false
	}
	i := sort.Search(len(table), func(i int) bool { return table[i].ext >= ext })
	if i == len(table) || table[i].ext != ext {
		return Type{}, false
	}
	return Type{Class: table[i].class, Subtype: table[i].subtype}, true
}

// All returns every (class, subtype) pair in the table, in table order,
// used to build the ConnectionManager GetProtocolInfo source list.
func All() []Type {
	out := make([]Type, len(table))
	for i, e := range table {
		out[i] = Type{Class: e.class, Subtype: e.subtype}
	}
	return out
}
