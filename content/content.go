// Package content builds the browseable catalog: it lists a filesystem
// directory under a media root, filters and classifies entries, and
// paginates the result for a Browse request.
package content

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anacrolix/log"

	"github.com/anacrolix/microdlna/internal/mime"
	"github.com/anacrolix/microdlna/internal/pathutil"
)

// Kind classifies a listing entry.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
)

// Entry is one filtered, classified directory member.
type Entry struct {
	Name string
	Kind Kind
	Size int64
	MIME mime.Type // zero value for directories
}

// Page is a paginated slice of a directory listing.
type Page struct {
	Entries       []Entry
	TotalMatches  int
	StartingIndex int
}

// Lister reads directories under a fixed media root.
type Lister struct {
	Root   string
	Logger log.Logger
}

// NewLister returns a Lister rooted at root.
func NewLister(root string, logger log.Logger) *Lister {
	return &Lister{Root: root, Logger: logger.WithNames("content")}
}

// List sanitises dirpath, reads that directory under the root, and
// returns the [startingIndex, startingIndex+requestedCount) window of
// its filtered, sorted entries. requestedCount == -1 means "all". ok is
// false if dirpath escapes the root (caller should answer 406); err is
// non-nil if the directory could not be opened (caller should answer
// 503).
func (l *Lister) List(dirpath string, startingIndex, requestedCount int) (Page, bool, error) {
	clean, ok := pathutil.Sanitize(dirpath)
	if !ok {
		l.Logger.Levelf(log.Debug, "rejecting browse outside media root: %q", dirpath)
		return Page{}, false, nil
	}

	target := l.Root
	if clean != "" {
		target = filepath.Join(l.Root, clean)
	}
	f, err := os.Open(target)
	if err != nil {
		return Page{}, true, err
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return Page{}, true, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "$") {
			continue
		}
		fi, err := os.Stat(filepath.Join(target, name))
		if err != nil {
			continue
		}
		switch {
		case fi.IsDir():
			if !readable(filepath.Join(target, name)) {
				continue
			}
			entries = append(entries, Entry{Name: name, Kind: KindDirectory})
		case fi.Mode().IsRegular():
			ty, ok := mime.Lookup(name)
			if !ok {
				continue
			}
			entries = append(entries, Entry{Name: name, Kind: KindFile, Size: fi.Size(), MIME: ty})
		default:
			continue
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	total := len(entries)
	if startingIndex >= total {
		startingIndex = 0
		requestedCount = 0
	}
	if requestedCount == -1 || startingIndex+requestedCount > total {
		requestedCount = total - startingIndex
	}

	window := make([]Entry, requestedCount)
	copy(window, entries[startingIndex:startingIndex+requestedCount])

	return Page{Entries: window, TotalMatches: total, StartingIndex: startingIndex}, true, nil
}

// readable reports whether dir can be opened and its contents listed
// (an empty but traversable directory still counts as readable).
func readable(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	return err == nil || errors.Is(err, io.EOF)
}
