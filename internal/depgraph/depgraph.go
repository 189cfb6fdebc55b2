// Package depgraph orders packages by their build-time dependencies using
// Kahn's algorithm with a lexicographic tie-break, so the resulting build
// order is reproducible across runs.
package depgraph

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/platform-wheels/wheelhouse/internal/recipe"
)

// CycleError reports a dependency graph that cannot be fully ordered. It
// names every package left unsorted when the ready set drained.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving: %s", strings.Join(e.Remaining, ", "))
}

// Sort returns the packages in build order: every resolvable dependency
// appears strictly before its dependents, ties broken by lexicographically
// smallest name. A dependency naming no known package is logged and its edge
// dropped. Returns a *CycleError when the graph contains a cycle.
func Sort(packages []recipe.Package, logger *slog.Logger) ([]recipe.Package, error) {
	byName := make(map[string]recipe.Package, len(packages))
	for _, pkg := range packages {
		byName[pkg.Name] = pkg
	}

	// dependency -> dependents, plus in-degree per package.
	dependents := make(map[string][]string, len(packages))
	inDegree := make(map[string]int, len(packages))
	for _, pkg := range packages {
		inDegree[pkg.Name] = 0
	}

	for _, pkg := range packages {
		for _, dep := range pkg.OrderDependencies() {
			if _, known := byName[dep]; !known {
				logger.Warn("dependency not declared in package set, edge dropped",
					"package", pkg.Name,
					"dependency", dep)
				continue
			}
			dependents[dep] = append(dependents[dep], pkg.Name)
			inDegree[pkg.Name]++
		}
	}

	// Ready set of zero in-degree names, re-sorted before every extraction
	// so the smallest name always builds first.
	var ready []string
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}

	ordered := make([]recipe.Package, 0, len(packages))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]

		ordered = append(ordered, byName[name])

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) != len(packages) {
		sorted := make(map[string]bool, len(ordered))
		for _, pkg := range ordered {
			sorted[pkg.Name] = true
		}

		var remaining []string
		for _, pkg := range packages {
			if !sorted[pkg.Name] {
				remaining = append(remaining, pkg.Name)
			}
		}
		sort.Strings(remaining)

		return nil, &CycleError{Remaining: remaining}
	}

	return ordered, nil
}
