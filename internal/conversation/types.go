package conversation

import (
	"coffee-fleet-backend/internal/dialogue"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/parse"
	"coffee-fleet-backend/internal/store"
)

// Action is what an operator did: pressed a menu button or sent text.
type Action string

const (
	ActionStart         Action = parse.VerbStart
	ActionChooseMachine Action = parse.VerbChooseMachine
	ActionStatusAll     Action = parse.VerbStatusAll
	ActionBackMain      Action = parse.VerbBackMain
	ActionOpenMachine   Action = parse.VerbOpenMachine
	ActionInventory     Action = parse.VerbInventory
	ActionInvAdd        Action = parse.VerbInvAdd
	ActionInvSub        Action = parse.VerbInvSub
	ActionAddItem       Action = parse.VerbAddItem
	ActionSubItem       Action = parse.VerbSubItem
	ActionTodayService  Action = parse.VerbTodayService
	ActionTodayWater    Action = parse.VerbTodayWater
	ActionText          Action = "text"
)

// navigation reports whether the action is a top-level menu action. Every such
// action discards a pending quantity prompt of the operator.
func (a Action) navigation() bool {
	switch a {
	case ActionStart, ActionChooseMachine, ActionStatusAll, ActionBackMain,
		ActionOpenMachine, ActionInventory, ActionInvAdd, ActionInvSub,
		ActionTodayService, ActionTodayWater:
		return true
	}
	return false
}

// Event is one decoded inbound message from the transport.
type Event struct {
	ActorID   int64  `json:"actor_id"`
	Username  string `json:"username"`
	Action    Action `json:"action"`
	MachineID int64  `json:"machine_id"`
	Item      string `json:"item"`
	Text      string `json:"text"`
}

// Tag classifies a Result for the transport to render.
type Tag string

const (
	TagCommitted         Tag = "committed"
	TagInsufficientStock Tag = "insufficient_stock"
	TagInvalidQuantity   Tag = "invalid_quantity"
	TagInvalidInput      Tag = "invalid_input"
	TagDenied            Tag = "denied"
	TagAwaitingQuantity  Tag = "awaiting_quantity"
	TagChooseItem        Tag = "choose_item"
	TagMenu              Tag = "menu"
	TagMachines          Tag = "machines"
	TagStatus            Tag = "status"
	TagIdle              Tag = "idle"
)

// Result is what the transport renders back to the operator.
type Result struct {
	Tag       Tag              `json:"tag"`
	Role      model.Role       `json:"role,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	MachineID int64            `json:"machine_id,omitempty"`
	Mode      model.Action     `json:"mode,omitempty"`
	Items     []model.Item     `json:"items,omitempty"`
	Pending   *dialogue.State  `json:"pending,omitempty"`
	Snapshot  *store.Snapshot  `json:"snapshot,omitempty"`
	Snapshots []store.Snapshot `json:"snapshots,omitempty"`
	Machines  []model.Machine  `json:"machines,omitempty"`
}
