package model

import (
	"fmt"
	"strings"
	"time"
)

// Item is one of the consumables tracked per machine.
type Item string

const (
	ItemCups      Item = "cups"
	ItemLids      Item = "lids"
	ItemMilk      Item = "milk"
	ItemChocolate Item = "chocolate"
	ItemCoffee    Item = "coffee"
)

// Items lists the tracked consumables in display order.
var Items = []Item{ItemCups, ItemLids, ItemMilk, ItemChocolate, ItemCoffee}

// ParseItem validates a raw item code.
func ParseItem(raw string) (Item, error) {
	item := Item(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := item.Column(); !ok {
		return "", fmt.Errorf("unknown item %q", raw)
	}
	return item, nil
}

// Column returns the inventory column holding the count for the item.
func (i Item) Column() (string, bool) {
	switch i {
	case ItemCups:
		return "cups", true
	case ItemLids:
		return "lids", true
	case ItemMilk:
		return "milk", true
	case ItemChocolate:
		return "chocolate", true
	case ItemCoffee:
		return "coffee", true
	}
	return "", false
}

// Action is the direction of an inventory change.
type Action string

const (
	ActionAdd Action = "ADD"
	ActionSub Action = "SUB"
)

// MaxQuantity bounds the quantity of a single ADD or SUB.
const MaxQuantity = 1_000_000

// Valid reports whether a is ADD or SUB.
func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionSub
}

// Delta returns the signed change applied to a count for the given quantity.
func (a Action) Delta(qty int) int {
	if a == ActionSub {
		return -qty
	}
	return qty
}

// Inventory holds the current consumable counts of a machine. The check
// constraints back up the locked non-negative check done by the store.
type Inventory struct {
	MachineID int64     `gorm:"primaryKey;autoIncrement:false" json:"machine_id"`
	Cups      int       `gorm:"not null;default:0;check:cups >= 0" json:"cups"`
	Lids      int       `gorm:"not null;default:0;check:lids >= 0" json:"lids"`
	Milk      int       `gorm:"not null;default:0;check:milk >= 0" json:"milk"`
	Chocolate int       `gorm:"not null;default:0;check:chocolate >= 0" json:"chocolate"`
	Coffee    int       `gorm:"not null;default:0;check:coffee >= 0" json:"coffee"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Machine Machine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Inventory) TableName() string { return "inventory" }

// Count returns the stored count for item, or zero for an unknown item.
func (inv Inventory) Count(item Item) int {
	switch item {
	case ItemCups:
		return inv.Cups
	case ItemLids:
		return inv.Lids
	case ItemMilk:
		return inv.Milk
	case ItemChocolate:
		return inv.Chocolate
	case ItemCoffee:
		return inv.Coffee
	}
	return 0
}
