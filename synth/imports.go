package synth

import (
	"path"
	"sort"
	"strconv"
	"strings"
)

// importSet assigns local names to imported packages. Each path is imported
// once; two paths with the same package name get numbered aliases.
type importSet struct {
	local map[string]string // path -> local name
	owner map[string]string // local name -> path
}

func newImportSet(reserved ...string) *importSet {
	s := &importSet{
		local: make(map[string]string),
		owner: make(map[string]string),
	}
	for _, name := range reserved {
		s.owner[name] = ""
	}
	return s
}

// add imports pkgPath and returns the name generated code refers to it by.
func (s *importSet) add(pkgPath, pkgName string) string {
	if name, ok := s.local[pkgPath]; ok {
		return name
	}
	if pkgName == "" {
		pkgName = PackageName(pkgPath)
	}
	name := pkgName
	for i := 2; ; i++ {
		if _, taken := s.owner[name]; !taken {
			break
		}
		name = pkgName + strconv.Itoa(i)
	}
	s.local[pkgPath] = name
	s.owner[name] = pkgPath
	return name
}

// addType imports every package d refers to.
func (s *importSet) addType(d TypeDesc) {
	d.Walk(func(t TypeDesc) {
		if t.IsNamed() {
			s.add(t.PkgPath, t.PkgName)
		}
	})
}

func (s *importSet) qualifier() qualifier {
	return func(pkgPath, pkgName string) string {
		return s.add(pkgPath, pkgName)
	}
}

// paths returns the imported paths in sorted order.
func (s *importSet) paths() []string {
	out := make([]string, 0, len(s.local))
	for p := range s.local {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *importSet) write(b *strings.Builder) {
	paths := s.paths()
	if len(paths) == 0 {
		return
	}
	b.WriteString("import (\n")
	for _, p := range paths {
		b.WriteByte('\t')
		if name := s.local[p]; name != path.Base(p) {
			b.WriteString(name + " ")
		}
		b.WriteString(strconv.Quote(p) + "\n")
	}
	b.WriteString(")\n\n")
}
