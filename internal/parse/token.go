package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"coffee-fleet-backend/internal/model"
)

var (
	tokenRe = regexp.MustCompile(`^([a-z_]+)(?::(\d+)(?::([A-Za-z_]+))?)?$`)

	// ErrInvalidQuantity is returned for text that is not an integer in [1, model.MaxQuantity].
	ErrInvalidQuantity = errors.New("quantity must be a whole number from 1 to 1000000")
)

// Verbs carried by menu buttons.
const (
	VerbStart         = "start"
	VerbChooseMachine = "choose_machine"
	VerbStatusAll     = "status_all"
	VerbBackMain      = "back_main"
	VerbOpenMachine   = "open_machine"
	VerbInventory     = "inventory"
	VerbInvAdd        = "inv_add"
	VerbInvSub        = "inv_sub"
	VerbAddItem       = "add_item"
	VerbSubItem       = "sub_item"
	VerbTodayService  = "today_service"
	VerbTodayWater    = "today_water"
)

// aliases maps the short prefixes used in button payloads to verbs.
var aliases = map[string]string{
	"m":   VerbOpenMachine,
	"inv": VerbInventory,
}

// arity is the number of arguments each verb takes: 0, 1 (machine) or 2 (machine, item).
var arity = map[string]int{
	VerbStart:         0,
	VerbChooseMachine: 0,
	VerbStatusAll:     0,
	VerbBackMain:      0,
	VerbOpenMachine:   1,
	VerbInventory:     1,
	VerbInvAdd:        1,
	VerbInvSub:        1,
	VerbTodayService:  1,
	VerbTodayWater:    1,
	VerbAddItem:       2,
	VerbSubItem:       2,
}

// Token is a decoded button payload such as "add_item:3:milk".
type Token struct {
	Verb      string
	MachineID int64
	Item      string
}

// ParseToken decodes a button payload or the "/start" command. The item code is
// returned as is; checking it against the tracked items is up to the caller.
func ParseToken(raw string) (Token, error) {
	s := strings.TrimSpace(raw)
	if s == "/start" {
		return Token{Verb: VerbStart}, nil
	}

	m := tokenRe.FindStringSubmatch(s)
	if m == nil {
		return Token{}, fmt.Errorf("unable to parse token: %q", raw)
	}

	verb := m[1]
	if alias, ok := aliases[verb]; ok {
		verb = alias
	}
	want, ok := arity[verb]
	if !ok {
		return Token{}, fmt.Errorf("unknown token verb %q", m[1])
	}

	got := 0
	if m[2] != "" {
		got++
	}
	if m[3] != "" {
		got++
	}
	if got != want {
		return Token{}, fmt.Errorf("token %q: %s takes %d argument(s), got %d", raw, verb, want, got)
	}

	tok := Token{Verb: verb, Item: m[3]}
	if m[2] != "" {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return Token{}, fmt.Errorf("token %q: bad machine id: %w", raw, err)
		}
		tok.MachineID = id
	}
	return tok, nil
}

// ParseQuantity reads an operator's reply to the quantity prompt.
func ParseQuantity(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 || n > model.MaxQuantity {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}
