package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// RelationshipType is a declared (start labels)-[rel labels]->(end labels)
// triple.
type RelationshipType struct {
	Start  Labels `json:"start"`
	Labels Labels `json:"labels"`
	End    Labels `json:"end"`
}

func NewRelationshipType(start []string, relLabels []string, end []string) RelationshipType {
	return RelationshipType{
		Start:  NewLabels(start...),
		Labels: NewLabels(relLabels...),
		End:    NewLabels(end...),
	}
}

func (r RelationshipType) Key() string {
	return r.Start.Key() + "|" + r.Labels.Key() + "|" + r.End.Key()
}

func (r RelationshipType) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", r.Start, r.Labels, r.End)
}

// GraphType is the declared shape of a graph, independent of the data any
// one instance holds. Like Schema it is immutable and its builders commute.
type GraphType struct {
	elements  map[string]PropertyKeys
	nodeTypes map[string]PropertyKeys
	relKeys   map[string]PropertyKeys
	relTypes  map[string]RelationshipType
}

var EmptyGraphType = GraphType{}

func (g GraphType) clone() GraphType {
	res := GraphType{
		elements:  make(map[string]PropertyKeys, len(g.elements)),
		nodeTypes: make(map[string]PropertyKeys, len(g.nodeTypes)),
		relKeys:   make(map[string]PropertyKeys, len(g.relKeys)),
		relTypes:  make(map[string]RelationshipType, len(g.relTypes)),
	}

	for k, v := range g.elements {
		res.elements[k] = v.Copy()
	}

	for k, v := range g.nodeTypes {
		res.nodeTypes[k] = v.Copy()
	}

	for k, v := range g.relKeys {
		res.relKeys[k] = v.Copy()
	}

	maps.Copy(res.relTypes, g.relTypes)

	return res
}

func (g GraphType) WithElementType(label string, keys PropertyKeys) (GraphType, error) {
	res := g.clone()

	merged, err := res.elements[label].merge(label, keys)
	if err != nil {
		return GraphType{}, err
	}

	res.elements[label] = merged

	return res, nil
}

// WithNodeType declares a label combination. Labels without an element type
// get an empty one.
func (g GraphType) WithNodeType(labels ...string) GraphType {
	res := g.clone()
	res.addNodeType(NewLabels(labels...))

	return res
}

// WithNodeTypeProperties declares a label combination together with keys
// that belong to the combination rather than to any single label.
func (g GraphType) WithNodeTypeProperties(labels Labels, keys PropertyKeys) (GraphType, error) {
	labels = NewLabels(labels...)

	res := g.clone()
	res.addNodeType(labels)

	merged, err := res.nodeTypes[labels.Key()].merge(labels.String(), keys)
	if err != nil {
		return GraphType{}, err
	}

	res.nodeTypes[labels.Key()] = merged

	return res, nil
}

func (g GraphType) WithRelationshipType(start []string, relLabels []string, end []string) GraphType {
	rt := NewRelationshipType(start, relLabels, end)

	res := g.clone()
	res.addNodeType(rt.Start)
	res.addNodeType(rt.End)

	for _, label := range rt.Labels {
		res.addRelKeys(label)
	}

	res.relTypes[rt.Key()] = rt

	return res
}

// WithRelationshipProperties declares keys of a relationship type without
// constraining its endpoints.
func (g GraphType) WithRelationshipProperties(relType string, keys PropertyKeys) (GraphType, error) {
	res := g.clone()
	res.addRelKeys(relType)

	merged, err := res.relKeys[relType].merge(relElement(relType), keys)
	if err != nil {
		return GraphType{}, err
	}

	res.relKeys[relType] = merged

	return res, nil
}

func (g *GraphType) addNodeType(labels Labels) {
	if _, ok := g.nodeTypes[labels.Key()]; !ok {
		g.nodeTypes[labels.Key()] = PropertyKeys{}
	}

	for _, label := range labels {
		if _, ok := g.elements[label]; !ok {
			g.elements[label] = PropertyKeys{}
		}
	}
}

func (g *GraphType) addRelKeys(relType string) {
	if _, ok := g.relKeys[relType]; !ok {
		g.relKeys[relType] = PropertyKeys{}
	}
}

// NodeTypes returns the declared label combinations sorted by key.
func (g GraphType) NodeTypes() []Labels {
	keys := slices.Sorted(maps.Keys(g.nodeTypes))

	res := make([]Labels, 0, len(keys))
	for _, key := range keys {
		res = append(res, LabelsFromKey(key))
	}

	return res
}

func (g GraphType) RelationshipLabels() []string {
	return slices.Sorted(maps.Keys(g.relKeys))
}

// RelationshipTypes returns the declared endpoint triples sorted by key.
func (g GraphType) RelationshipTypes() []RelationshipType {
	keys := slices.Sorted(maps.Keys(g.relTypes))

	res := make([]RelationshipType, 0, len(keys))
	for _, key := range keys {
		res = append(res, g.relTypes[key])
	}

	return res
}

func (g GraphType) HasNodeType(labels Labels) bool {
	_, ok := g.nodeTypes[NewLabels(labels...).Key()]
	return ok
}

// NodePropertyKeys returns the declared keys of a label combination: the
// keys of each label's element type plus the combination's own keys.
func (g GraphType) NodePropertyKeys(labels Labels) (PropertyKeys, error) {
	labels = NewLabels(labels...)

	res := g.nodeTypes[labels.Key()].Copy()

	var err error
	for _, label := range labels {
		res, err = res.merge(labels.String(), g.elements[label])
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

func (g GraphType) RelationshipPropertyKeys(relType string) (PropertyKeys, error) {
	return g.relKeys[relType].merge(relElement(relType), g.elements[relType])
}

// MissingNodePropertyKeys returns the keys declared for labels that the
// observed schema doesn't carry for that combination.
func (g GraphType) MissingNodePropertyKeys(labels Labels, observed Schema) (PropertyKeys, error) {
	declared, err := g.NodePropertyKeys(labels)
	if err != nil {
		return nil, err
	}

	return missing(declared, observed.NodePropertyKeys(labels)), nil
}

func (g GraphType) MissingRelationshipPropertyKeys(relType string, observed Schema) (PropertyKeys, error) {
	declared, err := g.RelationshipPropertyKeys(relType)
	if err != nil {
		return nil, err
	}

	return missing(declared, observed.RelationshipPropertyKeys(relType)), nil
}

func missing(declared, observed PropertyKeys) PropertyKeys {
	res := PropertyKeys{}
	for key, typ := range declared {
		if _, ok := observed[key]; !ok {
			res[key] = typ
		}
	}

	return res
}

// AsSchema returns the schema every instance of the graph type presents.
func (g GraphType) AsSchema() (Schema, error) {
	res := Empty

	for _, labels := range g.NodeTypes() {
		keys, err := g.NodePropertyKeys(labels)
		if err != nil {
			return Schema{}, err
		}

		res, err = res.WithNodePropertyKeys(labels, keys)
		if err != nil {
			return Schema{}, err
		}
	}

	for _, relType := range g.RelationshipLabels() {
		keys, err := g.RelationshipPropertyKeys(relType)
		if err != nil {
			return Schema{}, err
		}

		res, err = res.WithRelationshipPropertyKeys(relType, keys)
		if err != nil {
			return Schema{}, err
		}
	}

	return res, nil
}

// GraphTypeFromSchema declares exactly the observed shape. Endpoints are not
// part of a Schema, so no relationship triple is declared.
func GraphTypeFromSchema(s Schema) GraphType {
	res := EmptyGraphType.clone()

	for _, labels := range s.LabelCombinations() {
		res.addNodeType(labels)
		res.nodeTypes[labels.Key()] = s.NodePropertyKeys(labels)
	}

	for _, relType := range s.RelationshipTypes() {
		res.relKeys[relType] = s.RelationshipPropertyKeys(relType)
	}

	return res
}

func (g GraphType) Equal(o GraphType) bool {
	return maps.EqualFunc(g.elements, o.elements, PropertyKeys.Equal) &&
		maps.EqualFunc(g.nodeTypes, o.nodeTypes, PropertyKeys.Equal) &&
		maps.EqualFunc(g.relKeys, o.relKeys, PropertyKeys.Equal) &&
		maps.EqualFunc(g.relTypes, o.relTypes, func(a, b RelationshipType) bool {
			return a.Key() == b.Key()
		})
}

func (g GraphType) String() string {
	var sb strings.Builder

	for _, labels := range g.NodeTypes() {
		keys, _ := g.NodePropertyKeys(labels)
		fmt.Fprintf(&sb, "(%s)", labels)
		writeKeys(&sb, keys)
		sb.WriteString("\n")
	}

	for _, rt := range g.RelationshipTypes() {
		sb.WriteString(rt.String() + "\n")
	}

	return sb.String()
}

type graphTypeJSON struct {
	Elements          map[string]PropertyKeys `json:"elements"`
	NodeTypes         []nodeTypeJSON          `json:"node_types"`
	RelationshipKeys  map[string]PropertyKeys `json:"relationship_keys"`
	RelationshipTypes []RelationshipType      `json:"relationship_types"`
}

func (g GraphType) MarshalJSON() ([]byte, error) {
	data := graphTypeJSON{
		Elements:          g.elements,
		NodeTypes:         make([]nodeTypeJSON, 0, len(g.nodeTypes)),
		RelationshipKeys:  g.relKeys,
		RelationshipTypes: g.RelationshipTypes(),
	}

	for _, labels := range g.NodeTypes() {
		data.NodeTypes = append(data.NodeTypes, nodeTypeJSON{
			Labels:     labels,
			Properties: g.nodeTypes[labels.Key()],
		})
	}

	return json.Marshal(data)
}

func (g *GraphType) UnmarshalJSON(b []byte) error {
	var data graphTypeJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}

	res := EmptyGraphType

	var err error
	for _, label := range slices.Sorted(maps.Keys(data.Elements)) {
		res, err = res.WithElementType(label, data.Elements[label])
		if err != nil {
			return err
		}
	}

	for _, n := range data.NodeTypes {
		res, err = res.WithNodeTypeProperties(n.Labels, n.Properties)
		if err != nil {
			return err
		}
	}

	for _, relType := range slices.Sorted(maps.Keys(data.RelationshipKeys)) {
		res, err = res.WithRelationshipProperties(relType, data.RelationshipKeys[relType])
		if err != nil {
			return err
		}
	}

	for _, rt := range data.RelationshipTypes {
		res = res.WithRelationshipType(rt.Start, rt.Labels, rt.End)
	}

	*g = res

	return nil
}
