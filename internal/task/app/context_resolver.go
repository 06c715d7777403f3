package app

import (
	"context"
	"time"

	chat_domain "task_chat_service/internal/chat/domain"
	"task_chat_service/internal/task/domain"
	"task_chat_service/internal/task/repository"
	"task_chat_service/pkg/breaker"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ContextResolver resolve the task a chat room is about
type ContextResolver struct {
	repo          repository.TaskRepository
	signer        repository.AssetSigner
	presignExpiry time.Duration
	cb            *gobreaker.CircuitBreaker[*domain.Task]
	cbBatch       *gobreaker.CircuitBreaker[[]domain.Task]
}

// NewContextResolver signer may be nil (picture left empty)
func NewContextResolver(repo repository.TaskRepository, signer repository.AssetSigner, presignExpiry time.Duration, s breaker.Settings) *ContextResolver {
	batch := s
	batch.Name = s.Name + "_batch"
	return &ContextResolver{
		repo:          repo,
		signer:        signer,
		presignExpiry: presignExpiry,
		cb:            breaker.New[*domain.Task](s),
		cbBatch:       breaker.New[[]domain.Task](batch),
	}
}

// Resolve task summary, not_found when the task does not exist
func (r *ContextResolver) Resolve(ctx context.Context, contextID string) (*chat_domain.ContextSummary, error) {
	id, err := primitive.ObjectIDFromHex(contextID)
	if err != nil {
		return nil, errprocess.Validation("invalid context_id %q", contextID)
	}

	task, err := r.cb.Execute(func() (*domain.Task, error) {
		return r.repo.FindByID(ctx, id)
	})
	if err != nil {
		return nil, errprocess.External(err, "resolve task %s", contextID)
	}
	if task == nil {
		return nil, errprocess.NotFound("task %s not found", contextID)
	}

	summary := r.summary(ctx, task)
	return &summary, nil
}

// Summaries batch lookup for room lists, unknown ids are skipped
func (r *ContextResolver) Summaries(ctx context.Context, ids []string) (map[string]chat_domain.ContextSummary, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}

	tasks, err := r.cbBatch.Execute(func() ([]domain.Task, error) {
		return r.repo.FindByIDs(ctx, oids)
	})
	if err != nil {
		return nil, errprocess.External(err, "load tasks")
	}

	out := make(map[string]chat_domain.ContextSummary, len(tasks))
	for i := range tasks {
		out[tasks[i].ID.Hex()] = r.summary(ctx, &tasks[i])
	}
	return out, nil
}

func (r *ContextResolver) summary(ctx context.Context, t *domain.Task) chat_domain.ContextSummary {
	s := chat_domain.ContextSummary{
		ID:        t.ID.Hex(),
		Title:     t.Title,
		Status:    t.Status,
		Location:  t.Location,
		Incentive: t.Incentive,
		CreatedAt: t.CreatedAt,
	}
	asset := t.FirstAsset()
	if asset == nil {
		return s
	}

	// 有 storage key 就 presign，失敗退回原本存的 url
	s.Picture = asset.URL
	if asset.AssetStorageKey != "" && r.signer != nil {
		url, err := r.signer.PresignGetURL(ctx, asset.AssetStorageKey, r.presignExpiry)
		if err != nil {
			logger.Log.Warn("presign task asset", zap.String("task_id", s.ID), zap.Error(err))
		} else {
			s.Picture = url
		}
	}
	return s
}
