package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
)

type BaseType string

const (
	TypeInteger BaseType = "INTEGER"
	TypeFloat   BaseType = "FLOAT"
	TypeString  BaseType = "STRING"
	TypeBoolean BaseType = "BOOLEAN"
	TypeBinary  BaseType = "BINARY" // element identities
)

// CypherType is a property type. Nullability is part of the type: INTEGER
// and INTEGER? are different types, the latter being the wider one.
type CypherType struct {
	Base     BaseType
	Nullable bool
}

var (
	Integer = CypherType{Base: TypeInteger}
	Float   = CypherType{Base: TypeFloat}
	String  = CypherType{Base: TypeString}
	Boolean = CypherType{Base: TypeBoolean}
	Binary  = CypherType{Base: TypeBinary}
)

func (t CypherType) AsNullable() CypherType {
	t.Nullable = true
	return t
}

func (t CypherType) String() string {
	if t.Nullable {
		return string(t.Base) + "?"
	}

	return string(t.Base)
}

// Join returns the narrowest type both t and o widen to. Only nullability
// widens; different base types never join.
func (t CypherType) Join(o CypherType) (CypherType, bool) {
	if t.Base != o.Base {
		return CypherType{}, false
	}

	return CypherType{Base: t.Base, Nullable: t.Nullable || o.Nullable}, true
}

func ParseCypherType(s string) (CypherType, error) {
	nullable := strings.HasSuffix(s, "?")
	base := BaseType(strings.ToUpper(strings.TrimSuffix(s, "?")))

	switch base {
	case TypeInteger, TypeFloat, TypeString, TypeBoolean, TypeBinary:
		return CypherType{Base: base, Nullable: nullable}, nil
	}

	return CypherType{}, errs.IllegalArgument("type", fmt.Sprintf("unknown cypher type %q", s))
}

func (t CypherType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *CypherType) UnmarshalText(data []byte) error {
	parsed, err := ParseCypherType(string(data))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// Labels is a label combination: a sorted set of labels.
type Labels []string

func NewLabels(labels ...string) Labels {
	res := slices.Clone(labels)
	slices.Sort(res)

	return slices.Compact(res)
}

// LabelsFromKey is the inverse of Labels.Key.
func LabelsFromKey(key string) Labels {
	if key == "" {
		return Labels{}
	}

	return NewLabels(strings.Split(key, ":")...)
}

func (l Labels) Key() string {
	return strings.Join(l, ":")
}

func (l Labels) Contains(label string) bool {
	_, found := slices.BinarySearch(l, label)
	return found
}

func (l Labels) ContainsAll(o Labels) bool {
	for _, label := range o {
		if !l.Contains(label) {
			return false
		}
	}

	return true
}

func (l Labels) Equal(o Labels) bool {
	return slices.Equal(l, o)
}

func (l Labels) String() string {
	if len(l) == 0 {
		return "()"
	}

	return ":" + strings.Join(l, ":")
}

// PropertyKeys maps a property key to its type.
type PropertyKeys map[string]CypherType

func (p PropertyKeys) Copy() PropertyKeys {
	res := make(PropertyKeys, len(p))
	maps.Copy(res, p)

	return res
}

func (p PropertyKeys) Equal(o PropertyKeys) bool {
	return maps.Equal(p, o)
}

func (p PropertyKeys) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// union merges key sets observed on the same element. A key seen on one side
// only becomes nullable because rows of the other side don't carry it.
func (p PropertyKeys) union(element string, o PropertyKeys) (PropertyKeys, error) {
	res := make(PropertyKeys, len(p)+len(o))

	for key, left := range p {
		right, ok := o[key]
		if !ok {
			res[key] = left.AsNullable()
			continue
		}

		joined, ok := left.Join(right)
		if !ok {
			return nil, &SchemaConflictError{Element: element, Property: key, Left: left, Right: right}
		}

		res[key] = joined
	}

	for key, right := range o {
		if _, ok := p[key]; !ok {
			res[key] = right.AsNullable()
		}
	}

	return res, nil
}

// merge combines two declarations of the same element. Unlike union,
// keys declared on one side only keep their declared type.
func (p PropertyKeys) merge(element string, o PropertyKeys) (PropertyKeys, error) {
	res := p.Copy()

	for key, right := range o {
		left, ok := res[key]
		if !ok {
			res[key] = right
			continue
		}

		joined, ok := left.Join(right)
		if !ok {
			return nil, &SchemaConflictError{Element: element, Property: key, Left: left, Right: right}
		}

		res[key] = joined
	}

	return res, nil
}

// SchemaConflictError is returned when the same property of the same element
// is typed with two incompatible types.
type SchemaConflictError struct {
	Element  string
	Property string
	Left     CypherType
	Right    CypherType
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf(
		"schema conflict on %s.%s: %s vs %s",
		e.Element,
		e.Property,
		e.Left,
		e.Right,
	)
}

func (e *SchemaConflictError) Unwrap() error {
	return errs.ErrSchemaConflict
}

func relElement(relType string) string {
	return "[:" + relType + "]"
}
