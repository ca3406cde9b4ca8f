// Package catalogs loads the static definition data the simulation consumes:
// the item registry and the world map (nodes, coordinates, gatherables).
// Each catalog carries a digest so replays can verify they run against the
// same definitions.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type Catalogs struct {
	Items ItemCatalog
	Map   *WorldMap
}

type ItemCatalog struct {
	Defs   map[string]ItemDef
	Order  []string
	Digest string
}

type ItemDef struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category" json:"category"`
}

// Get returns the item definition or nil when the id is unknown.
func (c *ItemCatalog) Get(id string) *ItemDef {
	d, ok := c.Defs[id]
	if !ok {
		return nil
	}
	return &d
}

// Gatherable is a resource-production definition attached to a node.
type Gatherable struct {
	ItemID    string  `yaml:"item" json:"item"`
	Skill     string  `yaml:"skill" json:"skill"`
	BaseTicks int     `yaml:"base_ticks" json:"base_ticks"`
	XPPerTick float64 `yaml:"xp_per_tick" json:"xp_per_tick"`
	MinLevel  int     `yaml:"min_level" json:"min_level"`
}

type Node struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Pos         [2]float64   `yaml:"pos" json:"pos"`
	Gatherables []Gatherable `yaml:"gatherables" json:"gatherables,omitempty"`
}

type Link struct {
	From     string  `yaml:"from"`
	To       string  `yaml:"to"`
	Distance float64 `yaml:"distance"`
}

type WorldMap struct {
	nodes  map[string]*Node
	order  []string
	hub    string
	links  map[[2]string]float64
	Digest string
}

// GetNode returns the node or nil when the id is unknown.
func (m *WorldMap) GetNode(id string) *Node { return m.nodes[id] }

func (m *WorldMap) HubNodeID() string { return m.hub }

func (m *WorldMap) NodeIDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// FindPath returns the travel distance between two nodes, or false when
// either node is unknown. An explicit link distance wins over the euclidean
// fallback; distance is opaque to the core.
func (m *WorldMap) FindPath(from, to string) (float64, bool) {
	a, b := m.nodes[from], m.nodes[to]
	if a == nil || b == nil {
		return 0, false
	}
	if from == to {
		return 0, true
	}
	if d, ok := m.links[[2]string{from, to}]; ok {
		return d, true
	}
	if d, ok := m.links[[2]string{to, from}]; ok {
		return d, true
	}
	return Dist(a.Pos, b.Pos), true
}

// Dist is the euclidean distance between two map coordinates.
func Dist(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

type itemsFile struct {
	Items []ItemDef `yaml:"items"`
}

type mapFile struct {
	Hub   string `yaml:"hub"`
	Nodes []Node `yaml:"nodes"`
	Links []Link `yaml:"links"`
}

// Load reads items.yaml and worldmap.yaml from dir.
func Load(dir string) (*Catalogs, error) {
	var ifl itemsFile
	if err := readYAML(filepath.Join(dir, "items.yaml"), &ifl); err != nil {
		return nil, err
	}
	var mfl mapFile
	if err := readYAML(filepath.Join(dir, "worldmap.yaml"), &mfl); err != nil {
		return nil, err
	}
	return Build(ifl.Items, mfl.Hub, mfl.Nodes, mfl.Links)
}

// Build assembles catalogs from in-memory definitions (tests use this to
// avoid config files on disk).
func Build(items []ItemDef, hub string, nodes []Node, links []Link) (*Catalogs, error) {
	c := &Catalogs{
		Items: ItemCatalog{Defs: map[string]ItemDef{}},
		Map:   &WorldMap{nodes: map[string]*Node{}, links: map[[2]string]float64{}},
	}
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("item with empty id")
		}
		if _, dup := c.Items.Defs[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item id: %s", it.ID)
		}
		c.Items.Defs[it.ID] = it
		c.Items.Order = append(c.Items.Order, it.ID)
	}
	sort.Strings(c.Items.Order)
	c.Items.Digest = digestOf(orderedItems(c.Items))

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := c.Map.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		for _, g := range n.Gatherables {
			if _, ok := c.Items.Defs[g.ItemID]; !ok {
				return nil, fmt.Errorf("node %s: gatherable references unknown item %s", n.ID, g.ItemID)
			}
		}
		nn := n
		c.Map.nodes[n.ID] = &nn
		c.Map.order = append(c.Map.order, n.ID)
	}
	sort.Strings(c.Map.order)
	if hub == "" {
		return nil, fmt.Errorf("worldmap: hub is required")
	}
	if c.Map.nodes[hub] == nil {
		return nil, fmt.Errorf("worldmap: hub %s is not a node", hub)
	}
	c.Map.hub = hub
	for _, l := range links {
		if c.Map.nodes[l.From] == nil || c.Map.nodes[l.To] == nil {
			return nil, fmt.Errorf("link %s->%s references unknown node", l.From, l.To)
		}
		c.Map.links[[2]string{l.From, l.To}] = l.Distance
	}
	c.Map.Digest = digestOf(orderedNodes(c.Map))
	return c, nil
}

func readYAML(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func orderedItems(ic ItemCatalog) any {
	out := make([]ItemDef, 0, len(ic.Order))
	for _, id := range ic.Order {
		out = append(out, ic.Defs[id])
	}
	return out
}

func orderedNodes(m *WorldMap) any {
	type digestNode struct {
		Node Node   `json:"node"`
		Hub  string `json:"hub"`
	}
	out := make([]digestNode, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, digestNode{Node: *m.nodes[id], Hub: m.hub})
	}
	return out
}

func digestOf(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
