package sync

import (
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

// SkipReason says why a source folder is left out of migration.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipListed      SkipReason = "skip_list"
	SkipSystemName  SkipReason = "system_name"
	SkipUnsupported SkipReason = "unsupported_class"
)

// SourceFolder describes one archive folder below the anchor container.
type SourceFolder struct {
	Name           string
	ContainerClass string
	// Depth is 0 for folders directly below the anchor.
	Depth      int
	ParentName string
	Skip       bool
	SkipReason SkipReason
}

// Excluded reports whether the folder and its whole subtree are dropped.
// Folders skipped only for their container class keep their descendants.
func (f SourceFolder) Excluded() bool {
	return f.SkipReason == SkipListed || f.SkipReason == SkipSystemName
}

// Normalize flattens the archive tree below the "Top of Personal Folders"
// anchor into descriptors, parents before children, preserving sibling order.
// A missing anchor yields no descriptors and a warning.
func Normalize(root archive.Folder, opts Options) ([]SourceFolder, error) {
	anchor, ok, err := archive.FindAnchor(root, archive.AnchorName)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warnf("%q not found, nothing to reconcile", archive.AnchorName)
		return nil, nil
	}

	var out []SourceFolder
	var walk func(parent archive.Folder, depth int) error
	walk = func(parent archive.Folder, depth int) error {
		children, err := parent.Subfolders()
		if err != nil {
			return err
		}
		for _, child := range children {
			out = append(out, describe(child, parent.DisplayName(), depth, opts))
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(anchor, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func describe(f archive.Folder, parentName string, depth int, opts Options) SourceFolder {
	class := f.ContainerClass()
	if class == "" {
		class = archive.ClassNote
	}
	d := SourceFolder{
		Name:           f.DisplayName(),
		ContainerClass: class,
		Depth:          depth,
		ParentName:     parentName,
	}
	switch {
	case slices.Contains(opts.SkipFolders, d.Name):
		d.SkipReason = SkipListed
	case IsSystemName(d.Name):
		d.SkipReason = SkipSystemName
	case !opts.SupportsFolder(class):
		d.SkipReason = SkipUnsupported
	}
	d.Skip = d.SkipReason != SkipNone
	return d
}
