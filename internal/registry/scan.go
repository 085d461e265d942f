package registry

import (
	"log/slog"
	"sort"
)

// ScanOptions configures Scan.
type ScanOptions struct {
	Logger *slog.Logger
}

// ScanReport counts what a scan visited and skipped.
type ScanReport struct {
	Registries  int // registries visited, root included
	Leaves      int
	Definitions int // definitions read from leaves
	Duplicates  int // later definitions dropped by first-seen-wins
	Resolved    int

	// Structural and per-entry failures. Neither aborts the scan.
	Structural []*StructuralError
	Unresolved []*ResolveError
}

// Lookup maps a qualified callable name to its definition.
type Lookup struct {
	defs map[string]*NodeDefinitionInfo
}

// NewLookup builds a Lookup from already-resolved definitions. First
// occurrence wins on duplicate names.
func NewLookup(defs ...NodeDefinitionInfo) *Lookup {
	l := &Lookup{defs: make(map[string]*NodeDefinitionInfo, len(defs))}
	for i := range defs {
		if _, ok := l.defs[defs[i].FullName]; ok {
			continue
		}
		d := defs[i]
		l.defs[d.FullName] = &d
	}
	return l
}

// Get returns the definition for name, or nil. The returned value is
// borrowed and must not be modified.
func (l *Lookup) Get(name string) *NodeDefinitionInfo {
	if l == nil {
		return nil
	}
	return l.defs[name]
}

// Len returns the number of definitions.
func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.defs)
}

// Names returns all qualified names in sorted order.
func (l *Lookup) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.defs))
	for name := range l.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type queued struct {
	reg  Registry
	path string
}

// Scan walks the registry hierarchy under root breadth-first and merges every
// leaf's definitions into one Lookup.
func Scan(root Registry, resolver Resolver, opts ScanOptions) (*Lookup, *ScanReport) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lookup := &Lookup{defs: make(map[string]*NodeDefinitionInfo)}
	report := &ScanReport{}
	if root == nil {
		return lookup, report
	}

	queue := []queued{{reg: root, path: root.Name()}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		report.Registries++

		children, err := next.reg.Children()
		if err != nil {
			serr := &StructuralError{Path: next.path, Op: "children", Err: err}
			report.Structural = append(report.Structural, serr)
			logger.Warn("skipping registry", "registry", next.path, "error", err)
			continue
		}
		if len(children) > 0 {
			for _, child := range children {
				if child == nil {
					continue
				}
				queue = append(queue, queued{reg: child, path: next.path + "/" + child.Name()})
			}
			continue
		}

		report.Leaves++
		defs, err := next.reg.Definitions()
		if err != nil {
			serr := &StructuralError{Path: next.path, Op: "definitions", Err: err}
			report.Structural = append(report.Structural, serr)
			logger.Warn("skipping registry", "registry", next.path, "error", err)
			continue
		}
		mergeLeaf(lookup, report, defs, resolver, logger)
	}

	logger.Debug("registry scan complete",
		"registries", report.Registries,
		"leaves", report.Leaves,
		"definitions", lookup.Len(),
		"duplicates", report.Duplicates,
		"unresolved", len(report.Unresolved),
		"structural", len(report.Structural),
	)
	return lookup, report
}

func mergeLeaf(lookup *Lookup, report *ScanReport, defs []Definition, resolver Resolver, logger *slog.Logger) {
	for _, def := range defs {
		report.Definitions++
		if _, seen := lookup.defs[def.FullName]; seen {
			report.Duplicates++
			continue
		}

		var member *Member
		if resolver != nil {
			m, err := resolver.ResolveMember(def)
			if err != nil {
				report.Unresolved = append(report.Unresolved, &ResolveError{FullName: def.FullName, Err: err})
				logger.Debug("skipping unresolved definition", "name", def.FullName, "error", err)
				continue
			}
			member = m
		}

		report.Resolved++
		lookup.defs[def.FullName] = &NodeDefinitionInfo{
			FullName: def.FullName,
			Kind:     def.Kind,
			Type:     def.Type,
			Member:   member,
		}
	}
}
