// Package registry maintains the track registry: the authoritative mapping
// between numeric track ids, display names and storage folders, plus the
// id counter.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/timeutil"
)

// SchemaVersion is written into every registry document.
const SchemaVersion = "1.0"

// Entry is one registered track.
type Entry struct {
	TrackID     int    `json:"track_id"`
	TrackName   string `json:"track_name"`
	FolderName  string `json:"folder_name"`
	Created     string `json:"created"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// document is the on-disk shape. NextID is a pointer so that a missing
// counter can be told apart from zero.
type document struct {
	SchemaVersion string  `json:"schema_version,omitempty"`
	NextID        *int    `json:"next_id,omitempty"`
	Tracks        []Entry `json:"tracks"`
}

func (d *document) validate() error {
	for i, e := range d.Tracks {
		if e.TrackID <= 0 {
			return fmt.Errorf("tracks[%d]: track_id must be positive", i)
		}
		if e.FolderName == "" {
			return fmt.Errorf("tracks[%d]: folder_name is required", i)
		}
	}
	return nil
}

// Store owns the registry document at one path. All mutations go through
// its methods and rewrite the whole document.
type Store struct {
	mu     sync.Mutex
	path   string
	fsys   fsutil.FileSystem
	clock  timeutil.Clock
	nextID int
	tracks []Entry
}

// NewStore loads the registry at path. A missing, unreadable or invalid
// document yields an empty registry.
func NewStore(path string, fsys fsutil.FileSystem, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Store{path: path, fsys: fsys, clock: clock}
	s.load()
	return s
}

func (s *Store) load() {
	s.nextID = 1
	s.tracks = nil

	var doc document
	err := fsutil.ReadJSON(s.fsys, s.path, &doc)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		err = doc.validate()
	}
	if err != nil {
		opsf("could not load registry from %s, starting empty: %v", s.path, err)
		return
	}

	s.tracks = doc.Tracks
	if doc.NextID != nil {
		s.nextID = *doc.NextID
	} else {
		s.nextID = len(doc.Tracks) + 1
	}
}

// Reload re-reads the document from disk, discarding in-memory state.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Save rewrites the whole document. Failures are logged and returned.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Store) save() error {
	next := s.nextID
	tracks := s.tracks
	if tracks == nil {
		tracks = []Entry{}
	}
	doc := document{SchemaVersion: SchemaVersion, NextID: &next, Tracks: tracks}
	if err := fsutil.WriteJSON(s.fsys, s.path, doc, 2); err != nil {
		opsf("error saving registry: %v", err)
		return err
	}
	return nil
}

func (s *Store) now() string { return timeutil.ISO8601(s.clock.Now()) }

// Register inserts or updates a track. An empty folder is derived from
// name with SanitizeName.
func (s *Store) Register(id int, name, folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if folder == "" {
		folder = SanitizeName(name)
	}

	for i := range s.tracks {
		if s.tracks[i].TrackID == id {
			s.tracks[i].TrackName = name
			s.tracks[i].FolderName = folder
			s.tracks[i].LastUpdated = s.now()
			_ = s.save()
			return
		}
	}

	s.tracks = append(s.tracks, Entry{
		TrackID:    id,
		TrackName:  name,
		FolderName: folder,
		Created:    s.now(),
	})
	if id >= s.nextID {
		s.nextID = id + 1
	}
	_ = s.save()
	opsf("registered track id %d: %s -> %s/", id, name, folder)
}

// NextID returns the next unused id and persists the advanced counter.
func (s *Store) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	_ = s.save()
	return id
}

// PeekNextID returns the counter without advancing it.
func (s *Store) PeekNextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// ByID returns a copy of the entry for id.
func (s *Store) ByID(id int) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.tracks {
		if e.TrackID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ByFolder returns a copy of the entry stored under folder.
func (s *Store) ByFolder(folder string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.tracks {
		if e.FolderName == folder {
			return e, true
		}
	}
	return Entry{}, false
}

// FolderName returns the folder for id, or "" if id is unknown.
func (s *Store) FolderName(id int) string {
	e, ok := s.ByID(id)
	if !ok {
		return ""
	}
	return e.FolderName
}

// List returns a copy of all entries in registration order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Rename changes the display name and folder of id. An empty newFolder is
// derived from newName. It reports whether id was found.
func (s *Store) Rename(id int, newName, newFolder string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newFolder == "" {
		newFolder = SanitizeName(newName)
	}
	for i := range s.tracks {
		if s.tracks[i].TrackID == id {
			s.tracks[i].TrackName = newName
			s.tracks[i].FolderName = newFolder
			s.tracks[i].LastUpdated = s.now()
			_ = s.save()
			return true
		}
	}
	return false
}

// Delete removes id. It reports whether id was found.
func (s *Store) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.tracks {
		if e.TrackID == id {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			_ = s.save()
			opsf("deleted track id %d", id)
			return true
		}
	}
	return false
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9_]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeName turns a display name into a folder name: lowercase, spaces
// to underscores, anything outside [a-z0-9_] removed, runs of underscores
// collapsed and trimmed. An empty result becomes "unnamed_track".
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = underscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "unnamed_track"
	}
	return name
}
