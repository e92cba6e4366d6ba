package storage

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"lini/domain"
)

const (
	boardPartition = "board"
	edmInt64       = "Edm.Int64"
)

// Tables stores boards in three Azure tables. Boards share one partition;
// lists and cards are partitioned by board id.
type Tables struct {
	boards *aztables.Client
	lists  *aztables.Client
	cards  *aztables.Client
	ids    *IDSource
}

// NewTables connects to the tables named in the connection string's account.
// ids issues list and card ids; nil picks a random instance.
func NewTables(connStr, boardsTable, listsTable, cardsTable string, ids *IDSource) (*Tables, error) {
	if ids == nil {
		var err error
		if ids, err = NewIDSource(-1); err != nil {
			return nil, err
		}
	}
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{
		boards: svc.NewClient(boardsTable),
		lists:  svc.NewClient(listsTable),
		cards:  svc.NewClient(cardsTable),
		ids:    ids,
	}, nil
}

type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type boardEntity struct {
	entity
	Name      string `json:"Name"`
	JoinCode  string `json:"JoinCode"`
	CreatedBy string `json:"CreatedBy"`
	CreatedAt string `json:"CreatedAt"`
	Members   string `json:"Members"`
}

type listEntity struct {
	entity
	Title    string `json:"Title"`
	Position int    `json:"Position"`
}

type cardEntity struct {
	entity
	ListID     int64  `json:"ListID,string"`
	ListIDType string `json:"ListID@odata.type"`
	Title      string `json:"Title"`
	Desc       string `json:"Desc"`
	Tag        string `json:"Tag"`
	Position   int    `json:"Position"`
	CreatedAt  string `json:"CreatedAt"`
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseKey(k string) (int64, error) {
	return strconv.ParseInt(k, 10, 64)
}

// quote escapes a value for an OData filter literal.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func encodeBoard(s BoardState) (boardEntity, error) {
	members, err := sonic.MarshalString(s.Members)
	if err != nil {
		return boardEntity{}, err
	}
	return boardEntity{
		entity:    entity{PartitionKey: boardPartition, RowKey: key(s.ID)},
		Name:      s.Name,
		JoinCode:  s.JoinCode,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339Nano),
		Members:   members,
	}, nil
}

func decodeBoard(e boardEntity) (BoardState, error) {
	id, err := parseKey(e.RowKey)
	if err != nil {
		return BoardState{}, err
	}
	s := BoardState{ID: id, Name: e.Name, JoinCode: e.JoinCode, CreatedBy: e.CreatedBy}
	if e.CreatedAt != "" {
		if s.CreatedAt, err = time.Parse(time.RFC3339Nano, e.CreatedAt); err != nil {
			return BoardState{}, err
		}
	}
	if e.Members != "" {
		if err := sonic.UnmarshalString(e.Members, &s.Members); err != nil {
			return BoardState{}, err
		}
	}
	return s, nil
}

func encodeList(boardID int64, l domain.List) listEntity {
	return listEntity{
		entity:   entity{PartitionKey: key(boardID), RowKey: key(l.ID)},
		Title:    l.Title,
		Position: l.Position,
	}
}

func encodeCard(boardID int64, c domain.Card) cardEntity {
	return cardEntity{
		entity:     entity{PartitionKey: key(boardID), RowKey: key(c.ID)},
		ListID:     c.ListID,
		ListIDType: edmInt64,
		Title:      c.Title,
		Desc:       c.Desc,
		Tag:        string(c.Tag),
		Position:   c.Position,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// assemble orders lists by position then id and places every card in its
// list, likewise ordered. Cards of missing lists are dropped.
func assemble(s BoardState, lists []listEntity, cards []cardEntity) (BoardState, error) {
	s.Lists = make([]domain.List, 0, len(lists))
	for _, e := range lists {
		id, err := parseKey(e.RowKey)
		if err != nil {
			return BoardState{}, err
		}
		s.Lists = append(s.Lists, domain.List{ID: id, Title: e.Title, Position: e.Position})
	}
	sort.Slice(s.Lists, func(i, j int) bool {
		if s.Lists[i].Position != s.Lists[j].Position {
			return s.Lists[i].Position < s.Lists[j].Position
		}
		return s.Lists[i].ID < s.Lists[j].ID
	})
	index := make(map[int64]int, len(s.Lists))
	for i, l := range s.Lists {
		index[l.ID] = i
	}
	for _, e := range cards {
		li, ok := index[e.ListID]
		if !ok {
			continue
		}
		id, err := parseKey(e.RowKey)
		if err != nil {
			return BoardState{}, err
		}
		c := domain.Card{ID: id, ListID: e.ListID, Title: e.Title, Desc: e.Desc, Tag: domain.NormalizeTag(e.Tag), Position: e.Position}
		if e.CreatedAt != "" {
			if c.CreatedAt, err = time.Parse(time.RFC3339Nano, e.CreatedAt); err != nil {
				return BoardState{}, err
			}
		}
		s.Lists[li].Cards = append(s.Lists[li].Cards, c)
	}
	for i := range s.Lists {
		cs := s.Lists[i].Cards
		sort.Slice(cs, func(a, b int) bool {
			if cs[a].Position != cs[b].Position {
				return cs[a].Position < cs[b].Position
			}
			return cs[a].ID < cs[b].ID
		})
		for j := range cs {
			cs[j].Position = j
		}
		s.Lists[i].Position = i
	}
	return s, nil
}

// changes lists the rows to write and delete to turn prev into next.
type changes struct {
	lists       []listEntity
	cards       []cardEntity
	deleteLists []string
	deleteCards []string
}

func plan(prev, next BoardState) changes {
	var ch changes
	prevLists := map[int64]domain.List{}
	prevCards := map[int64]domain.Card{}
	for _, l := range prev.Lists {
		prevLists[l.ID] = l
		for _, c := range l.Cards {
			prevCards[c.ID] = c
		}
	}
	seenLists := map[int64]bool{}
	seenCards := map[int64]bool{}
	for _, l := range next.Lists {
		seenLists[l.ID] = true
		if old, ok := prevLists[l.ID]; !ok || old.Title != l.Title || old.Position != l.Position {
			ch.lists = append(ch.lists, encodeList(next.ID, l))
		}
		for _, c := range l.Cards {
			seenCards[c.ID] = true
			if old, ok := prevCards[c.ID]; !ok || old != c {
				ch.cards = append(ch.cards, encodeCard(next.ID, c))
			}
		}
	}
	for _, l := range prev.Lists {
		if !seenLists[l.ID] {
			ch.deleteLists = append(ch.deleteLists, key(l.ID))
		}
		for _, c := range l.Cards {
			if !seenCards[c.ID] {
				ch.deleteCards = append(ch.deleteCards, key(c.ID))
			}
		}
	}
	return ch
}

func boardChanged(prev, next BoardState) bool {
	if prev.ID == 0 || prev.Name != next.Name || prev.JoinCode != next.JoinCode ||
		prev.CreatedBy != next.CreatedBy || len(prev.Members) != len(next.Members) {
		return true
	}
	for i := range prev.Members {
		if prev.Members[i] != next.Members[i] {
			return true
		}
	}
	return false
}

func (t *Tables) NextID(context.Context) (int64, error) {
	return t.ids.Next(), nil
}

func (t *Tables) Load(ctx context.Context, boardID int64) (BoardState, error) {
	raw, err := t.boards.GetEntity(ctx, boardPartition, key(boardID), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return BoardState{}, ErrBoardNotFound
		}
		return BoardState{}, err
	}
	var be boardEntity
	if err := sonic.Unmarshal(raw.Value, &be); err != nil {
		return BoardState{}, err
	}
	s, err := decodeBoard(be)
	if err != nil {
		return BoardState{}, err
	}

	filter := "PartitionKey eq " + quote(key(boardID))
	var lists []listEntity
	if err := listAll(ctx, t.lists, filter, func(data []byte) error {
		var e listEntity
		if err := sonic.Unmarshal(data, &e); err != nil {
			return err
		}
		lists = append(lists, e)
		return nil
	}); err != nil {
		return BoardState{}, err
	}
	var cards []cardEntity
	if err := listAll(ctx, t.cards, filter, func(data []byte) error {
		var e cardEntity
		if err := sonic.Unmarshal(data, &e); err != nil {
			return err
		}
		cards = append(cards, e)
		return nil
	}); err != nil {
		return BoardState{}, err
	}
	return assemble(s, lists, cards)
}

func (t *Tables) Save(ctx context.Context, prev, next BoardState) error {
	if boardChanged(prev, next) {
		be, err := encodeBoard(next)
		if err != nil {
			return err
		}
		if err := upsert(ctx, t.boards, be); err != nil {
			return err
		}
	}
	ch := plan(prev, next)
	for _, e := range ch.lists {
		if err := upsert(ctx, t.lists, e); err != nil {
			return err
		}
	}
	for _, e := range ch.cards {
		if err := upsert(ctx, t.cards, e); err != nil {
			return err
		}
	}
	pk := key(next.ID)
	for _, rk := range ch.deleteCards {
		if err := remove(ctx, t.cards, pk, rk); err != nil {
			return err
		}
	}
	for _, rk := range ch.deleteLists {
		if err := remove(ctx, t.lists, pk, rk); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tables) BoardForCode(ctx context.Context, code string) (int64, error) {
	filter := "PartitionKey eq " + quote(boardPartition) + " and JoinCode eq " + quote(code)
	var id int64
	err := listAll(ctx, t.boards, filter, func(data []byte) error {
		var e boardEntity
		if err := sonic.Unmarshal(data, &e); err != nil {
			return err
		}
		if id == 0 {
			var err error
			id, err = parseKey(e.RowKey)
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrBoardNotFound
	}
	return id, nil
}

// Boards returns every board without its lists.
func (t *Tables) Boards(ctx context.Context) ([]BoardState, error) {
	var out []BoardState
	err := listAll(ctx, t.boards, "PartitionKey eq "+quote(boardPartition), func(data []byte) error {
		var e boardEntity
		if err := sonic.Unmarshal(data, &e); err != nil {
			return err
		}
		s, err := decodeBoard(e)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func listAll(ctx context.Context, c *aztables.Client, filter string, fn func([]byte) error) error {
	pager := c.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func upsert(ctx context.Context, c *aztables.Client, v any) error {
	payload, err := sonic.Marshal(v)
	if err == nil {
		_, err = c.UpsertEntity(ctx, payload, nil)
	}
	return err
}

func remove(ctx context.Context, c *aztables.Client, pk, rk string) error {
	_, err := c.DeleteEntity(ctx, pk, rk, nil)
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return nil
	}
	return err
}
