package cellar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WineType classifies a bottle and selects its directory inside the managed namespace.
type WineType string

const (
	WineTypeRed       WineType = "red"
	WineTypeWhite     WineType = "white"
	WineTypeRose      WineType = "rosé"
	WineTypeSparkling WineType = "sparkling"
)

var wineTypes = []WineType{WineTypeRed, WineTypeWhite, WineTypeRose, WineTypeSparkling}

func (t WineType) Valid() bool {
	for _, wt := range wineTypes {
		if wt == t {
			return true
		}
	}
	return false
}

// HistoryAction is the kind of event recorded in a bottle's history.
type HistoryAction string

const (
	ActionAdded    HistoryAction = "added"
	ActionConsumed HistoryAction = "consumed"
	ActionRemoved  HistoryAction = "removed"
)

var historyActions = []HistoryAction{ActionAdded, ActionConsumed, ActionRemoved}

func (a HistoryAction) Valid() bool {
	for _, ha := range historyActions {
		if ha == a {
			return true
		}
	}
	return false
}

// Sign returns +1 for actions that add stock and -1 for actions that take it away.
func (a HistoryAction) Sign() int {
	if a == ActionAdded {
		return 1
	}
	return -1
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// HistoryEntry is one event in a bottle's append-only history.
// Quantity is a magnitude; the direction comes from Action.
type HistoryEntry struct {
	Date     string        `json:"date"`
	Action   HistoryAction `json:"action"`
	Quantity int           `json:"quantity"`
	Price    *Price        `json:"price,omitempty"`
	Notes    *string       `json:"notes,omitempty"`
}

// Bottle is a single record in the cellar. The engine treats bottles as immutable
// values: helpers that change a bottle return a new one.
//
// Field order matches the canonical serialization order.
type Bottle struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Vintage      int            `json:"vintage"`
	Type         WineType       `json:"type"`
	Country      string         `json:"country"`
	Region       string         `json:"region"`
	GrapeVariety []string       `json:"grapeVariety"`
	Location     *string        `json:"location,omitempty"`
	Rating       *float64       `json:"rating,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
	History      []HistoryEntry `json:"history"`
}

// Quantity is the number of bottles currently held, derived from the history.
func (b *Bottle) Quantity() int {
	total := 0
	for _, h := range b.History {
		total += h.Action.Sign() * h.Quantity
	}
	if total < 0 {
		return 0
	}
	return total
}

// DisplayName is the label used for the bottle in commit messages and listings.
func (b *Bottle) DisplayName() string {
	return fmt.Sprintf("%s %d", b.Name, b.Vintage)
}

// Validate checks invariants that are not expressed by the JSON shape alone.
func (b *Bottle) Validate() error {
	if b.ID == "" {
		return newValidationError(KindMissingField, "field \"id\" must be a non-empty string")
	}
	if strings.Contains(b.ID, "/") || strings.Contains(b.ID, "..") {
		return newValidationError(KindWrongType, fmt.Sprintf("field \"id\" contains a path separator: %q", b.ID))
	}
	if !b.Type.Valid() {
		return newValidationError(KindInvalidEnum, fmt.Sprintf("field \"type\" has invalid value %q", b.Type))
	}
	for i, h := range b.History {
		if !h.Action.Valid() {
			return newValidationError(KindInvalidEnum, fmt.Sprintf("history[%d].action has invalid value %q", i, h.Action))
		}
	}
	return nil
}

// ValidateQuantities rejects negative history quantities. Stored files may
// carry them, so it applies to bottles created or edited locally only.
func (b *Bottle) ValidateQuantities() error {
	for i, h := range b.History {
		if h.Quantity < 0 {
			return newValidationError(KindNotInteger, fmt.Sprintf("history[%d].quantity must be a non-negative integer", i))
		}
	}
	return nil
}

// Clone returns a deep copy so callers can derive a new bottle without aliasing slices.
func (b *Bottle) Clone() *Bottle {
	out := *b
	out.GrapeVariety = append([]string{}, b.GrapeVariety...)
	out.History = make([]HistoryEntry, len(b.History))
	for i, h := range b.History {
		out.History[i] = h
		if h.Price != nil {
			p := *h.Price
			out.History[i].Price = &p
		}
	}
	return &out
}

// NewBottleParams describes a bottle that is being added to the cellar for the first time.
type NewBottleParams struct {
	Name         string
	Vintage      int
	Type         WineType
	Country      string
	Region       string
	GrapeVariety []string
	Location     string
	Quantity     int
	Price        *Price
	Notes        string
}

// NewBottle creates a bottle with a fresh identifier and an initial "added" history entry.
func NewBottle(params NewBottleParams, now time.Time) (*Bottle, error) {
	if params.Quantity <= 0 {
		params.Quantity = 1
	}
	b := &Bottle{
		ID:           uuid.New().String(),
		Name:         params.Name,
		Vintage:      params.Vintage,
		Type:         params.Type,
		Country:      params.Country,
		Region:       params.Region,
		GrapeVariety: append([]string{}, params.GrapeVariety...),
		History: []HistoryEntry{{
			Date:     now.UTC().Format(time.RFC3339),
			Action:   ActionAdded,
			Quantity: params.Quantity,
			Price:    params.Price,
		}},
	}
	if params.Location != "" {
		b.Location = &params.Location
	}
	if params.Notes != "" {
		b.Notes = &params.Notes
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := b.ValidateQuantities(); err != nil {
		return nil, err
	}
	return b, nil
}

// WithEvent returns a copy of the bottle with one more history entry appended.
func (b *Bottle) WithEvent(action HistoryAction, quantity int, now time.Time, notes string) (*Bottle, error) {
	if !action.Valid() {
		return nil, newValidationError(KindInvalidEnum, fmt.Sprintf("invalid history action %q", action))
	}
	if quantity <= 0 {
		return nil, newValidationError(KindNotInteger, "quantity must be a positive integer")
	}
	if action != ActionAdded && quantity > b.Quantity() {
		return nil, fmt.Errorf("cannot %s %d bottle(s) of %s: only %d left", action, quantity, b.DisplayName(), b.Quantity())
	}
	out := b.Clone()
	entry := HistoryEntry{
		Date:     now.UTC().Format(time.RFC3339),
		Action:   action,
		Quantity: quantity,
	}
	if notes != "" {
		entry.Notes = &notes
	}
	out.History = append(out.History, entry)
	return out, nil
}
