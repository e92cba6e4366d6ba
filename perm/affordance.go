package perm

// Affordance names a control the presentation layer renders.
type Affordance string

const (
	ListCreate   Affordance = "list-create"
	ListDelete   Affordance = "list-delete"
	ListTitle    Affordance = "list-title"
	CardCreate   Affordance = "card-create"
	QuickDelete  Affordance = "quick-delete"
	ModalSave    Affordance = "modal-save"
	ModalDelete  Affordance = "modal-delete"
	BoardReset   Affordance = "board-reset"
	ListDragging Affordance = "list-drag"
	CardDragging Affordance = "card-drag"
)

// Affordances tells the presentation layer which controls to hide and which
// to leave visible but disabled. It only shapes the UI; every action still
// checks its capability when invoked.
type Affordances struct {
	Hidden   []Affordance
	Disabled []Affordance
}

// Hides reports whether a is hidden.
func (a Affordances) Hides(x Affordance) bool {
	for _, h := range a.Hidden {
		if h == x {
			return true
		}
	}
	return false
}

// Disables reports whether a is disabled.
func (a Affordances) Disables(x Affordance) bool {
	for _, d := range a.Disabled {
		if d == x {
			return true
		}
	}
	return false
}

// Enabled reports whether a control is both visible and usable.
func (a Affordances) Enabled(x Affordance) bool {
	return !a.Hides(x) && !a.Disables(x)
}

// Affordances returns the controls the role lacks.
func (c Capabilities) Affordances() Affordances {
	var a Affordances
	if !c.ManageLists() {
		a.Hidden = append(a.Hidden, ListCreate, ListDelete, ListDragging)
		a.Disabled = append(a.Disabled, ListTitle)
	}
	if !c.ManageCards() {
		a.Hidden = append(a.Hidden, CardCreate, QuickDelete, CardDragging)
		a.Disabled = append(a.Disabled, ModalSave, ModalDelete)
	}
	if !c.Reset() {
		a.Disabled = append(a.Disabled, BoardReset)
	}
	return a
}
