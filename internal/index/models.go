package index

// Archive is a single built distribution discovered in the input set.
type Archive struct {
	Filename string // base name as found on disk
	Path     string // absolute or scan-relative source path
}

// Entry is one published file within a package group. SHA256 and Size are
// filled in when the group is processed.
type Entry struct {
	Filename string // published filename (renamed for alias groups)
	Path     string // source file the content is read from
	SHA256   string
	Size     int64
}

// Group collects all entries published under one package name.
type Group struct {
	Name    string // published package name, used as the subdirectory
	Aliased bool   // true when this group mirrors another group's content
	Entries []Entry
}

// Site is the complete index model: one group per published package name.
// Groups are ordered by name so rendering is deterministic.
type Site struct {
	Groups []Group
}

// Names returns the published package names in order.
func (s *Site) Names() []string {
	names := make([]string, 0, len(s.Groups))
	for _, group := range s.Groups {
		names = append(names, group.Name)
	}
	return names
}
