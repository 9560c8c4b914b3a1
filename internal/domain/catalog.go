package domain

// Item is a single statement belonging to one pole of one axis.
type Item struct {
	// ID uniquely identifies the item within a catalog (e.g. "M1").
	ID string `json:"id" yaml:"id"`

	// Axis is the axis the item measures.
	Axis Axis `json:"axis" yaml:"axis"`

	// Dimension is the pole of Axis the item leans toward.
	Dimension Dimension `json:"dimension" yaml:"dimension"`

	// Statement is the participant-facing text.
	Statement string `json:"statement" yaml:"statement"`
}

// Set pairs two complementary items of the same axis, one per dimension,
// presented together to the participant.
type Set struct {
	ID    string  `json:"setId" yaml:"set_id"`
	Axis  Axis    `json:"axis" yaml:"axis"`
	Items [2]Item `json:"items" yaml:"items"`
}

// Catalog is the immutable, ordered question catalog. It is built once at
// start-up and shared read-only; accessors hand out copies.
type Catalog struct {
	sets  []Set
	items []Item
	byID  map[string]Item
}

// NewCatalog builds a Catalog from sets. The input slice is copied so later
// changes by the caller are not observed. Structural validation is the
// loader's job; NewCatalog accepts whatever it is given.
func NewCatalog(sets []Set) *Catalog {
	c := &Catalog{
		sets:  make([]Set, len(sets)),
		items: make([]Item, 0, len(sets)*2),
		byID:  make(map[string]Item, len(sets)*2),
	}
	copy(c.sets, sets)
	for _, s := range c.sets {
		for _, it := range s.Items {
			c.items = append(c.items, it)
			c.byID[it.ID] = it
		}
	}
	return c
}

// Sets returns a copy of the catalog's sets in catalog order.
func (c *Catalog) Sets() []Set {
	if c == nil {
		return nil
	}
	out := make([]Set, len(c.sets))
	copy(out, c.sets)
	return out
}

// Items returns a copy of every item in catalog order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Item looks up an item by id.
func (c *Catalog) Item(id string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	it, ok := c.byID[id]
	return it, ok
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// ItemsFor returns the items of axis whose dimension is d, in catalog order.
func (c *Catalog) ItemsFor(axis Axis, d Dimension) []Item {
	if c == nil {
		return nil
	}
	var out []Item
	for _, it := range c.items {
		if it.Axis == axis && it.Dimension == d {
			out = append(out, it)
		}
	}
	return out
}
