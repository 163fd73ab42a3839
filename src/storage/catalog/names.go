package catalog

import (
	"cmp"
	"strings"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
)

type Namespace string

// SessionNamespace is present in every catalog and can not be deregistered.
const SessionNamespace Namespace = "session"

type QualifiedGraphName struct {
	Namespace Namespace `json:"namespace"`
	GraphName string    `json:"graph"`
}

func NewQualifiedGraphName(ns Namespace, graphName string) QualifiedGraphName {
	return QualifiedGraphName{Namespace: ns, GraphName: graphName}
}

func (q QualifiedGraphName) String() string {
	return string(q.Namespace) + "." + q.GraphName
}

// ParseQualifiedGraphName splits s on its first dot. A name without a
// namespace part lives in the session namespace.
func ParseQualifiedGraphName(s string) (QualifiedGraphName, error) {
	ns, name, ok := strings.Cut(s, ".")
	if !ok {
		ns, name = string(SessionNamespace), s
	}

	if ns == "" || name == "" {
		return QualifiedGraphName{}, errs.IllegalArgument("qualified graph name", "expected <namespace>.<graph>, got "+s)
	}

	return NewQualifiedGraphName(Namespace(ns), name), nil
}

func compareQualified(a, b QualifiedGraphName) int {
	return cmp.Or(cmp.Compare(a.Namespace, b.Namespace), cmp.Compare(a.GraphName, b.GraphName))
}
