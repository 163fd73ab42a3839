package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Schema describes the observed shape of a graph: the property keys of every
// node label combination and of every relationship type. Schema is an
// immutable value, every builder call returns a new Schema.
type Schema struct {
	nodes map[string]PropertyKeys
	rels  map[string]PropertyKeys
}

var Empty = Schema{}

func (s Schema) clone() Schema {
	res := Schema{
		nodes: make(map[string]PropertyKeys, len(s.nodes)),
		rels:  make(map[string]PropertyKeys, len(s.rels)),
	}

	for k, v := range s.nodes {
		res.nodes[k] = v.Copy()
	}

	for k, v := range s.rels {
		res.rels[k] = v.Copy()
	}

	return res
}

func (s Schema) WithNodePropertyKeys(labels Labels, keys PropertyKeys) (Schema, error) {
	labels = NewLabels(labels...)
	res := s.clone()

	existing, ok := res.nodes[labels.Key()]
	if !ok {
		res.nodes[labels.Key()] = keys.Copy()
		return res, nil
	}

	merged, err := existing.union(labels.String(), keys)
	if err != nil {
		return Schema{}, err
	}

	res.nodes[labels.Key()] = merged

	return res, nil
}

func (s Schema) WithRelationshipPropertyKeys(relType string, keys PropertyKeys) (Schema, error) {
	res := s.clone()

	existing, ok := res.rels[relType]
	if !ok {
		res.rels[relType] = keys.Copy()
		return res, nil
	}

	merged, err := existing.union(relElement(relType), keys)
	if err != nil {
		return Schema{}, err
	}

	res.rels[relType] = merged

	return res, nil
}

// Union merges two schemas key-wise. It is commutative and associative.
func (s Schema) Union(o Schema) (Schema, error) {
	var err error

	res := s
	for _, key := range slices.Sorted(maps.Keys(o.nodes)) {
		res, err = res.WithNodePropertyKeys(LabelsFromKey(key), o.nodes[key])
		if err != nil {
			return Schema{}, err
		}
	}

	for _, relType := range slices.Sorted(maps.Keys(o.rels)) {
		res, err = res.WithRelationshipPropertyKeys(relType, o.rels[relType])
		if err != nil {
			return Schema{}, err
		}
	}

	return res, nil
}

func (s Schema) Equal(o Schema) bool {
	return maps.EqualFunc(s.nodes, o.nodes, PropertyKeys.Equal) &&
		maps.EqualFunc(s.rels, o.rels, PropertyKeys.Equal)
}

func (s Schema) IsEmpty() bool {
	return len(s.nodes) == 0 && len(s.rels) == 0
}

func (s Schema) HasNodeType(labels Labels) bool {
	_, ok := s.nodes[labels.Key()]
	return ok
}

func (s Schema) HasRelationshipType(relType string) bool {
	_, ok := s.rels[relType]
	return ok
}

// LabelCombinations returns every node label combination sorted by key.
func (s Schema) LabelCombinations() []Labels {
	keys := slices.Sorted(maps.Keys(s.nodes))

	res := make([]Labels, 0, len(keys))
	for _, key := range keys {
		res = append(res, LabelsFromKey(key))
	}

	return res
}

// CombinationsFor returns the label combinations matched by labels: the
// combination equal to labels when exact is set, every superset otherwise.
func (s Schema) CombinationsFor(labels Labels, exact bool) []Labels {
	labels = NewLabels(labels...)

	res := make([]Labels, 0)
	for _, combo := range s.LabelCombinations() {
		if exact && combo.Equal(labels) || !exact && combo.ContainsAll(labels) {
			res = append(res, combo)
		}
	}

	return res
}

func (s Schema) RelationshipTypes() []string {
	return slices.Sorted(maps.Keys(s.rels))
}

func (s Schema) NodePropertyKeys(labels Labels) PropertyKeys {
	return s.nodes[NewLabels(labels...).Key()].Copy()
}

func (s Schema) RelationshipPropertyKeys(relType string) PropertyKeys {
	return s.rels[relType].Copy()
}

// NodePropertyKeysFor returns the keys of all combinations matched by labels
// merged the way a union of their rows would type them.
func (s Schema) NodePropertyKeysFor(labels Labels, exact bool) (PropertyKeys, error) {
	var (
		res PropertyKeys
		err error
	)

	for i, combo := range s.CombinationsFor(labels, exact) {
		if i == 0 {
			res = s.nodes[combo.Key()].Copy()
			continue
		}

		res, err = res.union(labels.String(), s.nodes[combo.Key()])
		if err != nil {
			return nil, err
		}
	}

	if res == nil {
		res = PropertyKeys{}
	}

	return res, nil
}

func (s Schema) RelationshipPropertyKeysFor(relTypes []string) (PropertyKeys, error) {
	var (
		res PropertyKeys
		err error
	)

	for i, relType := range relTypes {
		keys, ok := s.rels[relType]
		if !ok {
			continue
		}

		if i == 0 || res == nil {
			res = keys.Copy()
			continue
		}

		res, err = res.union(relElement(strings.Join(relTypes, "|")), keys)
		if err != nil {
			return nil, err
		}
	}

	if res == nil {
		res = PropertyKeys{}
	}

	return res, nil
}

func (s Schema) AllLabels() []string {
	set := make(map[string]struct{})
	for key := range s.nodes {
		for _, label := range LabelsFromKey(key) {
			set[label] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(set))
}

func (s Schema) AllPropertyKeys() []string {
	set := make(map[string]struct{})
	for _, keys := range s.nodes {
		for key := range keys {
			set[key] = struct{}{}
		}
	}

	for _, keys := range s.rels {
		for key := range keys {
			set[key] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(set))
}

// ForNode restricts the schema to one label combination.
func (s Schema) ForNode(labels Labels) Schema {
	labels = NewLabels(labels...)

	res := Schema{nodes: map[string]PropertyKeys{}, rels: map[string]PropertyKeys{}}
	if keys, ok := s.nodes[labels.Key()]; ok {
		res.nodes[labels.Key()] = keys.Copy()
	}

	return res
}

func (s Schema) ForRelationship(relType string) Schema {
	res := Schema{nodes: map[string]PropertyKeys{}, rels: map[string]PropertyKeys{}}
	if keys, ok := s.rels[relType]; ok {
		res.rels[relType] = keys.Copy()
	}

	return res
}

func (s Schema) String() string {
	var sb strings.Builder

	for _, labels := range s.LabelCombinations() {
		fmt.Fprintf(&sb, "(%s)", labels)
		writeKeys(&sb, s.nodes[labels.Key()])
		sb.WriteString("\n")
	}

	for _, relType := range s.RelationshipTypes() {
		fmt.Fprintf(&sb, "%s", relElement(relType))
		writeKeys(&sb, s.rels[relType])
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeKeys(sb *strings.Builder, keys PropertyKeys) {
	if len(keys) == 0 {
		return
	}

	parts := make([]string, 0, len(keys))
	for _, key := range keys.Keys() {
		parts = append(parts, key+": "+keys[key].String())
	}

	sb.WriteString(" {" + strings.Join(parts, ", ") + "}")
}

type nodeTypeJSON struct {
	Labels     Labels       `json:"labels"`
	Properties PropertyKeys `json:"properties"`
}

type relTypeJSON struct {
	Type       string       `json:"type"`
	Properties PropertyKeys `json:"properties"`
}

type schemaJSON struct {
	Nodes         []nodeTypeJSON `json:"nodes"`
	Relationships []relTypeJSON  `json:"relationships"`
}

func (s Schema) MarshalJSON() ([]byte, error) {
	data := schemaJSON{
		Nodes:         make([]nodeTypeJSON, 0, len(s.nodes)),
		Relationships: make([]relTypeJSON, 0, len(s.rels)),
	}

	for _, labels := range s.LabelCombinations() {
		data.Nodes = append(data.Nodes, nodeTypeJSON{
			Labels:     labels,
			Properties: s.nodes[labels.Key()],
		})
	}

	for _, relType := range s.RelationshipTypes() {
		data.Relationships = append(data.Relationships, relTypeJSON{
			Type:       relType,
			Properties: s.rels[relType],
		})
	}

	return json.Marshal(data)
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var data schemaJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}

	res := Empty

	var err error
	for _, n := range data.Nodes {
		res, err = res.WithNodePropertyKeys(n.Labels, n.Properties)
		if err != nil {
			return fmt.Errorf("failed to decode node type %s: %w", n.Labels, err)
		}
	}

	for _, r := range data.Relationships {
		res, err = res.WithRelationshipPropertyKeys(r.Type, r.Properties)
		if err != nil {
			return fmt.Errorf("failed to decode relationship type %s: %w", r.Type, err)
		}
	}

	*s = res

	return nil
}
