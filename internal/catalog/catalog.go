// Package catalog holds the static region -> business -> branch hierarchy that
// uploads are filed under. The tree is loaded once at startup and never mutated.
package catalog

import "github.com/samber/lo"

// Item is the capability shared by every level of the hierarchy. Any level can be
// rendered as a list of selectable options through it.
type Item interface {
	ItemID() int
	ItemName() string
}

var (
	_ Item = Region{}
	_ Item = Business{}
	_ Item = Branch{}
)

type Branch struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type Business struct {
	ID       int      `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Branches []Branch `yaml:"branches" json:"branches"`
}

// Region is the top level grouping (a country in the first dataset).
type Region struct {
	ID         int        `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Businesses []Business `yaml:"businesses" json:"businesses"`
}

type Catalog struct {
	Regions []Region `yaml:"regions" json:"regions"`
}

func (b Branch) ItemID() int { return b.ID }
func (b Branch) ItemName() string { return b.Name }
func (b Business) ItemID() int { return b.ID }
func (b Business) ItemName() string { return b.Name }
func (r Region) ItemID() int { return r.ID }
func (r Region) ItemName() string { return r.Name }

// Option is the labelled, selectable form of an Item.
type Option struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Options renders a list of items as selectable options, preserving order.
func Options[T Item](items []T) []Option {
	return lo.Map(items, func(item T, _ int) Option {
		return Option{ID: item.ItemID(), Name: item.ItemName()}
	})
}

// Lookup finds the first item with the given id.
func Lookup[T Item](items []T, id int) (T, bool) {
	return lo.Find(items, func(item T) bool {
		return item.ItemID() == id
	})
}

func (c *Catalog) Region(id int) (Region, bool) {
	return Lookup(c.Regions, id)
}

func (r Region) Business(id int) (Business, bool) {
	return Lookup(r.Businesses, id)
}

func (b Business) Branch(id int) (Branch, bool) {
	return Lookup(b.Branches, id)
}
