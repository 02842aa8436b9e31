// Package exportdir reads a personal archive that has been exported to a
// directory tree.
//
// Every directory is a folder. An optional folder.yaml sets the display name
// and container class:
//
//	display_name: Kontakte
//	container_class: IPF.Contact
//
// Items are read from *.eml, *.mbox, *.vcf and *.ics files in file name order.
// Calendar DATE and floating times are read in the location given to Open,
// which should be the zone all-day appointments are recognized in.
package exportdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

const metadataFile = "folder.yaml"

type folderMeta struct {
	DisplayName    string `yaml:"display_name"`
	ContainerClass string `yaml:"container_class"`
}

// Archive is an export directory opened for reading.
type Archive struct {
	root *Folder
}

// Open opens the export directory at path. A nil loc means time.Local.
func Open(path string, loc *time.Location) (*Archive, error) {
	if loc == nil {
		loc = time.Local
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open archive: %s is not a directory", path)
	}
	root, err := newFolder(path, "", loc)
	if err != nil {
		return nil, err
	}
	return &Archive{root: root}, nil
}

// Root implements archive.Archive.
func (a *Archive) Root() archive.Folder { return a.root }

// Close implements archive.Archive.
func (a *Archive) Close() error { return nil }

// Folder is a directory of the export.
type Folder struct {
	path  string
	name  string
	class string
	loc   *time.Location

	loaded bool
	items  []archive.Item
}

func newFolder(path, defaultName string, loc *time.Location) (*Folder, error) {
	f := &Folder{path: path, name: defaultName, loc: loc}

	raw, err := os.ReadFile(filepath.Join(path, metadataFile))
	switch {
	case err == nil:
		var meta folderMeta
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Join(path, metadataFile), err)
		}
		if meta.DisplayName != "" {
			f.name = meta.DisplayName
		}
		f.class = meta.ContainerClass
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read folder metadata: %w", err)
	}

	if f.class == "" && defaultName != "" {
		f.class = archive.ClassNote
	}
	return f, nil
}

// DisplayName implements archive.Folder.
func (f *Folder) DisplayName() string { return f.name }

// ContainerClass implements archive.Folder.
func (f *Folder) ContainerClass() string { return f.class }

// ContentCount implements archive.Folder. Items that fail to parse are not counted.
func (f *Folder) ContentCount() int {
	f.load()
	return len(f.items)
}

// Subfolders implements archive.Folder.
func (f *Folder) Subfolders() ([]archive.Folder, error) {
	entries, err := os.ReadDir(f.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.path, err)
	}
	var out []archive.Folder
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		child, err := newFolder(filepath.Join(f.path, e.Name()), e.Name(), f.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// Next implements archive.Folder.
func (f *Folder) Next(pos archive.Position) (archive.Item, archive.Position, error) {
	f.load()
	if pos < 0 || int(pos) >= len(f.items) {
		return nil, pos, archive.ErrDone
	}
	return f.items[pos], pos + 1, nil
}

func (f *Folder) load() {
	if f.loaded {
		return
	}
	f.loaded = true

	entries, err := os.ReadDir(f.path)
	if err != nil {
		log.WithError(err).WithField("folder", f.path).Warn("cannot list folder items")
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(f.path, name)
		var (
			items []archive.Item
			err   error
		)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".eml":
			items, err = readEML(path)
		case ".mbox":
			items, err = readMbox(path)
		case ".vcf":
			items, err = readVCards(path)
		case ".ics":
			items, err = readICS(path, f.loc)
		default:
			continue
		}
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("skipping unreadable item file")
			continue
		}
		f.items = append(f.items, items...)
	}
}
