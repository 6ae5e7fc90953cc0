package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeSpec is one generated node before insertion.
type NodeSpec struct {
	ID     string         `json:"id"`
	Labels []string       `json:"labels"`
	Attrs  map[string]any `json:"attrs"`
}

// RelSpec is one generated relationship before insertion. An empty Type
// means an untyped edge.
type RelSpec struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   string         `json:"type"`
	Attrs  map[string]any `json:"attrs"`
}

// Dataset contains the generated nodes and relationships.
type Dataset struct {
	Nodes         []NodeSpec `json:"nodes"`
	Relationships []RelSpec  `json:"relationships"`
}

// Generator produces a synthetic social graph: Person nodes connected by
// typed acquaintance edges, with a configurable share of untyped edges.
type Generator struct {
	cfg           Config
	rand          *rand.Rand
	nameFragments nameFragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.NumPeople <= 0 {
		cfg.NumPeople = DefaultConfig().NumPeople
	}
	if cfg.NumRelationships <= 0 {
		cfg.NumRelationships = DefaultConfig().NumRelationships
	}
	if cfg.UntypedChance < 0 {
		cfg.UntypedChance = 0
	}
	if cfg.SecondLabelChance < 0 {
		cfg.SecondLabelChance = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:           cfg,
		rand:          rand.New(rand.NewSource(cfg.Seed)),
		nameFragments: defaultNameFragments(),
	}
}

var relationshipTypes = []string{"FRIEND_OF", "KNOWS", "WORKS_WITH"}

// Generate synthesises nodes and relationships. It respects context
// cancellation. Runs with the same seed produce the same dataset, which
// makes generated fixtures reproducible.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	nodes := make([]NodeSpec, g.cfg.NumPeople)

	for i := 0; i < g.cfg.NumPeople; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		id := fmt.Sprintf("person-%05d", i+1)
		if g.cfg.UUIDs {
			id = uuid.NewString()
		}

		labels := []string{"Person"}
		if g.rand.Float64() < g.cfg.SecondLabelChance {
			labels = append(labels, g.randomExtraLabel())
		}

		name := g.randomFullName()
		nodes[i] = NodeSpec{
			ID:     id,
			Labels: labels,
			Attrs: map[string]any{
				"name": name,
				"age":  18 + g.rand.Intn(60),
				"city": g.randomCity(),
				"profile": map[string]any{
					"email":  g.randomEmail(name),
					"active": g.rand.Float64() < 0.8,
				},
			},
		}
	}

	relationships := make([]RelSpec, 0, g.cfg.NumRelationships)
	seen := make(map[string]struct{}, g.cfg.NumRelationships)

	// A bounded number of attempts keeps generation terminating on dense
	// configurations where most pairs are already connected.
	attempts := g.cfg.NumRelationships * 10
	for len(relationships) < g.cfg.NumRelationships && attempts > 0 {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		attempts--

		sourceIdx := g.rand.Intn(len(nodes))
		targetIdx := g.rand.Intn(len(nodes))
		if sourceIdx == targetIdx {
			continue
		}
		source := nodes[sourceIdx].ID
		target := nodes[targetIdx].ID
		pair := source + "->" + target
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}

		relType := relationshipTypes[g.rand.Intn(len(relationshipTypes))]
		if g.rand.Float64() < g.cfg.UntypedChance {
			relType = ""
		}

		relationships = append(relationships, RelSpec{
			Source: source,
			Target: target,
			Type:   relType,
			Attrs: map[string]any{
				"since":  1990 + g.rand.Intn(35),
				"weight": g.rand.Float64(),
			},
		})
	}

	return Dataset{Nodes: nodes, Relationships: relationships}, nil
}

func (g *Generator) randomFullName() string {
	return fmt.Sprintf("%s %s", g.nameFragments.first[g.rand.Intn(len(g.nameFragments.first))],
		g.nameFragments.last[g.rand.Intn(len(g.nameFragments.last))])
}

func (g *Generator) randomEmail(fullName string) string {
	domain := g.nameFragments.domains[g.rand.Intn(len(g.nameFragments.domains))]
	local := strings.ToLower(strings.ReplaceAll(fullName, " ", "."))
	return fmt.Sprintf("%s.%04d@%s", local, g.rand.Intn(10000), domain)
}

func (g *Generator) randomCity() string {
	return g.nameFragments.cities[g.rand.Intn(len(g.nameFragments.cities))]
}

func (g *Generator) randomExtraLabel() string {
	labels := []string{"Employee", "Student", "Admin", "Volunteer"}
	return labels[g.rand.Intn(len(labels))]
}

type nameFragments struct {
	first   []string
	last    []string
	domains []string
	cities  []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:   []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara"},
		last:    []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee"},
		domains: []string{"example.com", "mail.com", "knotwork.io", "graphmail.net"},
		cities:  []string{"San Francisco", "New York", "Seattle", "Austin", "Chicago", "Miami", "Denver", "Boston", "Oslo"},
	}
}
