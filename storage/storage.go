package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"tracker-api/domain"
)

// Every row lives under one partition; the dataset is a single workspace and
// fetch-all is the dominant read.
const partitionKey = "tracker"

// Tables names the five entity tables.
type Tables struct {
	Projects string
	Tasks    string
	SubTasks string
	Updates  string
	Users    string
}

// Storage provides access to the remote persistence service backing the
// in-memory store.
type Storage struct {
	projects *aztables.Client
	tasks    *aztables.Client
	subTasks *aztables.Client
	updates  *aztables.Client
	users    *aztables.Client
	events   *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables, eventsQueue string) (*Storage, error) {
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
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}

	return &Storage{
		projects: svc.NewClient(tables.Projects),
		tasks:    svc.NewClient(tables.Tasks),
		subTasks: svc.NewClient(tables.SubTasks),
		updates:  svc.NewClient(tables.Updates),
		users:    svc.NewClient(tables.Users),
		events:   eq,
	}, nil
}

// FetchProjects retrieves every project row.
func (s *Storage) FetchProjects(ctx context.Context) ([]domain.Project, error) {
	out := []domain.Project{}
	err := listEntities(ctx, s.projects, func(data []byte) error {
		p, err := decodeProjectEntity(data)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	out := []domain.Task{}
	err := listEntities(ctx, s.tasks, func(data []byte) error {
		t, err := decodeTaskEntity(data)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) FetchSubTasks(ctx context.Context) ([]domain.SubTask, error) {
	out := []domain.SubTask{}
	err := listEntities(ctx, s.subTasks, func(data []byte) error {
		st, err := decodeSubTaskEntity(data)
		if err != nil {
			return err
		}
		out = append(out, st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) FetchUpdates(ctx context.Context) ([]domain.Update, error) {
	out := []domain.Update{}
	err := listEntities(ctx, s.updates, func(data []byte) error {
		u, err := decodeUpdateEntity(data)
		if err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) FetchUsers(ctx context.Context) ([]domain.User, error) {
	out := []domain.User{}
	err := listEntities(ctx, s.users, func(data []byte) error {
		u, err := decodeUserEntity(data)
		if err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertProject writes a project row. Upserts keep creates idempotent under
// retry.
func (s *Storage) InsertProject(ctx context.Context, p domain.Project) error {
	return upsert(ctx, s.projects, encodeProjectEntity(p))
}

func (s *Storage) UpdateProject(ctx context.Context, p domain.Project) error {
	return upsert(ctx, s.projects, encodeProjectEntity(p))
}

func (s *Storage) DeleteProject(ctx context.Context, id string) error {
	return deleteRow(ctx, s.projects, id)
}

func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	return upsert(ctx, s.tasks, encodeTaskEntity(t))
}

func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	return upsert(ctx, s.tasks, encodeTaskEntity(t))
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	return deleteRow(ctx, s.tasks, id)
}

func (s *Storage) InsertSubTask(ctx context.Context, st domain.SubTask) error {
	return upsert(ctx, s.subTasks, encodeSubTaskEntity(st))
}

func (s *Storage) UpdateSubTask(ctx context.Context, st domain.SubTask) error {
	return upsert(ctx, s.subTasks, encodeSubTaskEntity(st))
}

func (s *Storage) DeleteSubTask(ctx context.Context, id string) error {
	return deleteRow(ctx, s.subTasks, id)
}

func (s *Storage) InsertUpdate(ctx context.Context, u domain.Update) error {
	return upsert(ctx, s.updates, encodeUpdateEntity(u))
}

func listEntities(ctx context.Context, client *aztables.Client, decode func([]byte) error) error {
	filter := "PartitionKey eq '" + partitionKey + "'"
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			if err := decode(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func upsert(ctx context.Context, client *aztables.Client, entity any) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	_, err = client.UpsertEntity(ctx, payload, nil)
	return err
}

// deleteRow treats an already-missing row as success so cascade deletes stay
// idempotent under retry.
func deleteRow(ctx context.Context, client *aztables.Client, id string) error {
	_, err := client.DeleteEntity(ctx, partitionKey, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
		return err
	}
	return nil
}
