package command

import (
	"strconv"
	"strings"
)

// Endpoints holds the command URLs of one board. Path-scoped commands are
// stored as prefixes and completed with the list or card id.
type Endpoints struct {
	Snapshot         string `yaml:"snapshot"`
	ListCreate       string `yaml:"list_create"`
	ListRenamePrefix string `yaml:"list_rename_prefix"`
	ListDeletePrefix string `yaml:"list_delete_prefix"`
	ListReorder      string `yaml:"list_reorder"`
	CardCreate       string `yaml:"card_create"`
	CardUpdatePrefix string `yaml:"card_update_prefix"`
	CardMove         string `yaml:"card_move"`
	CardDeletePrefix string `yaml:"card_delete_prefix"`
	Export           string `yaml:"export"`
	Reset            string `yaml:"reset"`
}

// EndpointsFor builds the endpoint table served by the board API at baseURL.
func EndpointsFor(baseURL string, boardID int64) Endpoints {
	b := strings.TrimRight(baseURL, "/") + "/api/boards/" + strconv.FormatInt(boardID, 10) + "/"
	return Endpoints{
		Snapshot:         b,
		ListCreate:       b + "list/create/",
		ListRenamePrefix: b + "list/",
		ListDeletePrefix: b + "list/",
		ListReorder:      b + "list/reorder/",
		CardCreate:       b + "card/create/",
		CardUpdatePrefix: b + "card/",
		CardMove:         b + "card/move/",
		CardDeletePrefix: b + "card/",
		Export:           b + "export/",
		Reset:            b + "reset/",
	}
}

func (e Endpoints) ListRename(listID int64) string {
	return e.ListRenamePrefix + strconv.FormatInt(listID, 10) + "/rename/"
}

func (e Endpoints) ListDelete(listID int64) string {
	return e.ListDeletePrefix + strconv.FormatInt(listID, 10) + "/delete/"
}

func (e Endpoints) CardUpdate(cardID int64) string {
	return e.CardUpdatePrefix + strconv.FormatInt(cardID, 10) + "/update/"
}

func (e Endpoints) CardDelete(cardID int64) string {
	return e.CardDeletePrefix + strconv.FormatInt(cardID, 10) + "/delete/"
}

// Merge fills empty fields of e from fallback.
func (e Endpoints) Merge(fallback Endpoints) Endpoints {
	pick := func(v, f string) string {
		if v != "" {
			return v
		}
		return f
	}
	return Endpoints{
		Snapshot:         pick(e.Snapshot, fallback.Snapshot),
		ListCreate:       pick(e.ListCreate, fallback.ListCreate),
		ListRenamePrefix: pick(e.ListRenamePrefix, fallback.ListRenamePrefix),
		ListDeletePrefix: pick(e.ListDeletePrefix, fallback.ListDeletePrefix),
		ListReorder:      pick(e.ListReorder, fallback.ListReorder),
		CardCreate:       pick(e.CardCreate, fallback.CardCreate),
		CardUpdatePrefix: pick(e.CardUpdatePrefix, fallback.CardUpdatePrefix),
		CardMove:         pick(e.CardMove, fallback.CardMove),
		CardDeletePrefix: pick(e.CardDeletePrefix, fallback.CardDeletePrefix),
		Export:           pick(e.Export, fallback.Export),
		Reset:            pick(e.Reset, fallback.Reset),
	}
}
