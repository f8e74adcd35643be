package queueaccess

import (
	"context"

	"notely/internal/api"
	"notely/internal/controller"
	"notely/internal/queue"
)

// Upload is a new job submitted from the CLI.
type Upload struct {
	ParentID string
	OwnerID  string
	Name     string
	MimeType string
	Priority int
	Payload  []byte
}

// Access provides queue operations whether backed by the daemon API or the
// store directly.
type Access interface {
	View(ctx context.Context) (api.QueueView, error)
	List(ctx context.Context, statuses []string) ([]api.Job, error)
	Describe(ctx context.Context, id string) (api.Job, error)
	Stats(ctx context.Context) (api.QueueStatsResponse, error)
	History(ctx context.Context, id string) (api.HistoryResponse, error)
	Enqueue(ctx context.Context, upload Upload) (string, error)
	Refresh(ctx context.Context) (api.QueueView, error)
	Reorder(ctx context.Context, ids []string) error
	Move(ctx context.Context, id string, up bool) error
	SetPriority(ctx context.Context, id string, priority int) error
	Retry(ctx context.Context, id string) error
	RetryAll(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, id string) error
}

// NewStoreAccess returns an Access backed by direct DB access. Jobs it
// enqueues wait for a daemon to upload them.
func NewStoreAccess(store *queue.Store, publisher queue.Publisher, ownerID string) Access {
	ctrl := controller.New(controller.Options{
		Store:     store,
		Publisher: publisher,
		OwnerID:   ownerID,
	})
	return &storeAccess{service: api.NewQueueService(ctrl, store)}
}

type storeAccess struct {
	service *api.QueueService
}

func (a *storeAccess) View(ctx context.Context) (api.QueueView, error) {
	return a.service.View(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	filters := make([]queue.Status, 0, len(statuses))
	for _, s := range statuses {
		parsed, err := queue.ParseStatus(s)
		if err != nil {
			return nil, err
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (api.Job, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Stats(ctx context.Context) (api.QueueStatsResponse, error) {
	return a.service.Stats(ctx)
}

// History is empty without a daemon: samples live in the uploading process.
func (a *storeAccess) History(_ context.Context, id string) (api.HistoryResponse, error) {
	return a.service.History(id), nil
}

func (a *storeAccess) Enqueue(ctx context.Context, upload Upload) (string, error) {
	resp, err := a.service.Enqueue(ctx, controller.EnqueueRequest{
		ParentID: upload.ParentID,
		OwnerID:  upload.OwnerID,
		Name:     upload.Name,
		MimeType: upload.MimeType,
		Priority: upload.Priority,
		Payload:  upload.Payload,
	})
	return resp.ID, err
}

func (a *storeAccess) Refresh(ctx context.Context) (api.QueueView, error) {
	return a.service.Refresh(ctx)
}

func (a *storeAccess) Reorder(ctx context.Context, ids []string) error {
	return a.service.Reorder(ctx, ids)
}

func (a *storeAccess) Move(ctx context.Context, id string, up bool) error {
	return a.service.Move(ctx, id, up)
}

func (a *storeAccess) SetPriority(ctx context.Context, id string, priority int) error {
	return a.service.SetPriority(ctx, id, priority)
}

func (a *storeAccess) Retry(ctx context.Context, id string) error {
	return a.service.Retry(ctx, id)
}

func (a *storeAccess) RetryAll(ctx context.Context) ([]string, error) {
	resp, err := a.service.RetryAll(ctx)
	return resp.IDs, err
}

func (a *storeAccess) Remove(ctx context.Context, id string) error {
	return a.service.Remove(ctx, id)
}
