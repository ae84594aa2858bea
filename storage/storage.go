package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"board-dnd/domain"
)

// queueClient is the slice of azqueue.QueueClient the storage layer uses,
// kept as an interface so tests can fake delivery.
type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage provides access to underlying persistence mechanisms: the board
// read model in table storage and the durable commit queue the reorder
// commit service consumes.
type Storage struct {
	stackTable  *aztables.Client
	itemTable   *aztables.Client
	commitQueue queueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, stacksTable, itemsTable, commitQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	st := svc.NewClient(stacksTable)
	it := svc.NewClient(itemsTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	cq, err := azqueue.NewQueueClientFromConnectionString(connStr, commitQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{stackTable: st, itemTable: it, commitQueue: cq}, nil
}

type stackEntity struct {
	aztables.Entity
	Position int `json:"Position"`
	// OrderedItemIDs is stored as a JSON-encoded array; table storage has
	// no native list column.
	OrderedItemIDs string `json:"OrderedItemIds"`
}

type itemEntity struct {
	aztables.Entity
	Title   string `json:"Title"`
	StackID string `json:"StackId"`
}

// FetchBoard retrieves the user's stacks (in display order) and items.
func (s *Storage) FetchBoard(ctx context.Context, userID string) ([]domain.Stack, []domain.Item, error) {
	stacks, err := s.fetchStacks(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.fetchItems(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return stacks, items, nil
}

func (s *Storage) fetchStacks(ctx context.Context, userID string) ([]domain.Stack, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.stackTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

	type positioned struct {
		stack    domain.Stack
		position int
	}
	var rows []positioned
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent stackEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			st, err := decodeStackEntity(ent)
			if err != nil {
				return nil, err
			}
			rows = append(rows, positioned{stack: st, position: ent.Position})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].position < rows[j].position })

	stacks := make([]domain.Stack, 0, len(rows))
	for _, r := range rows {
		stacks = append(stacks, r.stack)
	}
	return stacks, nil
}

func decodeStackEntity(ent stackEntity) (domain.Stack, error) {
	st := domain.Stack{ID: ent.RowKey, OrderedItemIDs: []string{}}
	if ent.OrderedItemIDs != "" {
		if err := json.Unmarshal([]byte(ent.OrderedItemIDs), &st.OrderedItemIDs); err != nil {
			return domain.Stack{}, fmt.Errorf("stack %s: decode ordering: %w", ent.RowKey, err)
		}
	}
	return st, nil
}

func (s *Storage) fetchItems(ctx context.Context, userID string) ([]domain.Item, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.itemTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	items := []domain.Item{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent itemEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			items = append(items, domain.Item{
				ID:      ent.RowKey,
				Title:   ent.Title,
				StackID: ent.StackID,
			})
		}
	}
	return items, nil
}

// EnqueueCommands sends the given commands to the commit queue.
func (s *Storage) EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error {
	for _, cmd := range cmds {
		env := domain.CommandEnvelope{UserID: userID, Command: cmd}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if _, err := s.commitQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}
