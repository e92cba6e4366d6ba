package domain

// ListReorder is the list-reorder command body: the complete new order.
type ListReorder struct {
	Order []int64 `json:"order"`
}

// CardMove is the card-move command body. ToIndex is the card's zero-based
// position in the destination list after the drop.
type CardMove struct {
	CardID   int64 `json:"card_id"`
	ToListID int64 `json:"to_list_id"`
	ToIndex  int   `json:"to_index"`
}

// TitleBody carries a single title, used by list create and rename.
type TitleBody struct {
	Title string `json:"title"`
}

// CardCreate is the card-create command body.
type CardCreate struct {
	ListID int64  `json:"list_id"`
	Title  string `json:"title"`
}

// CardUpdate is the card-update command body.
type CardUpdate struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Tag   Tag    `json:"tag"`
}

// Empty is the body of path-scoped commands that carry no fields.
type Empty struct{}
