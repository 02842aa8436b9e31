package archive

// MemFolder is an in-memory Folder. It is used for fixtures and by readers that
// materialize a folder's items up front.
type MemFolder struct {
	Name     string
	Class    string
	Items    []Item
	Children []*MemFolder
}

// NewFolder creates an in-memory folder with the given children.
func NewFolder(name, class string, children ...*MemFolder) *MemFolder {
	return &MemFolder{Name: name, Class: class, Children: children}
}

// WithItems appends items and returns f for chaining.
func (f *MemFolder) WithItems(items ...Item) *MemFolder {
	f.Items = append(f.Items, items...)
	return f
}

func (f *MemFolder) DisplayName() string    { return f.Name }
func (f *MemFolder) ContainerClass() string { return f.Class }
func (f *MemFolder) ContentCount() int      { return len(f.Items) }

func (f *MemFolder) Subfolders() ([]Folder, error) {
	out := make([]Folder, len(f.Children))
	for i, c := range f.Children {
		out[i] = c
	}
	return out, nil
}

func (f *MemFolder) Next(pos Position) (Item, Position, error) {
	if pos < 0 || int(pos) >= len(f.Items) {
		return nil, pos, ErrDone
	}
	return f.Items[pos], pos + 1, nil
}

// Memory is an Archive backed by a MemFolder tree.
type Memory struct {
	RootFolder *MemFolder
}

// NewMemory wraps root as an Archive.
func NewMemory(root *MemFolder) *Memory {
	return &Memory{RootFolder: root}
}

func (m *Memory) Root() Folder { return m.RootFolder }
func (m *Memory) Close() error { return nil }
