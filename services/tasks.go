package services

import (
	"context"
	"errors"
	"log"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

const pendingReviewLimit = 100

// TaskView is one catalog entry with the user's progress on it.
type TaskView struct {
	economy.TaskDefinition
	Status models.TaskStatus `json:"status"`
	Task   *models.UserTask  `json:"task,omitempty"`
}

type TaskBoard struct {
	Tasks     []TaskView `json:"tasks"`
	Completed int        `json:"completed"`
	Earned    int64      `json:"earned"`
}

type VerifyResult struct {
	Task           *models.UserTask `json:"task"`
	Credited       int64            `json:"credited"`
	AwaitingReview bool             `json:"awaiting_review"`
	User           *models.User     `json:"user"`
}

type TaskService struct {
	*Ledger
}

func NewTaskService(l *Ledger) *TaskService {
	return &TaskService{Ledger: l}
}

// List returns the catalog merged with the user's task records.
func (s *TaskService) List(ctx context.Context) (*TaskBoard, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	var tasks []models.UserTask
	if err := s.Store.ListRecords(ctx, models.CollectionTask, store.Query{
		Filter: map[string]any{"user_email": user.Email},
		Limit:  len(models.TaskTypes),
	}, &tasks); err != nil {
		return nil, err
	}
	byType := make(map[models.TaskType]*models.UserTask, len(tasks))
	for i := range tasks {
		byType[tasks[i].TaskType] = &tasks[i]
	}

	board := &TaskBoard{}
	for _, def := range s.Params.TaskCatalog() {
		view := TaskView{TaskDefinition: def, Status: models.TaskStatusNotStarted}
		if t, ok := byType[def.Type]; ok {
			view.Status = t.Status
			view.Task = t
			if t.Status.Rewarded() {
				board.Completed++
				board.Earned += t.RewardTokens
			}
		}
		board.Tasks = append(board.Tasks, view)
	}
	return board, nil
}

// Start creates the pending record for a task. Starting a task that already
// has a record returns that record and creates nothing.
func (s *TaskService) Start(ctx context.Context, rawType string, data map[string]string) (*models.UserTask, bool, error) {
	def, err := s.definition(rawType)
	if err != nil {
		return nil, false, err
	}
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.find(ctx, user.Email, def.Type)
	if err != nil {
		return nil, false, err
	}
	task, created, err := economy.StartTask(def, user.Email, existing, data)
	if err != nil || !created {
		return task, false, s.Metrics.observe("task_start", err)
	}
	if err := s.Store.CreateRecord(ctx, task); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// lost a race with a concurrent start
			existing, findErr := s.find(ctx, user.Email, def.Type)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	log.Printf("📝 Task started: %s %s", user.Email, def.Type)
	return task, true, nil
}

// Verify completes an auto-review task and credits its reward exactly once.
// Manual-review tasks are left pending for an admin.
func (s *TaskService) Verify(ctx context.Context, rawType string) (*VerifyResult, error) {
	def, err := s.definition(rawType)
	if err != nil {
		return nil, err
	}
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	result := &VerifyResult{}
	updated, err := s.Store.MutateUser(ctx, user.Email, func(u *models.User, tx store.Tx) error {
		var task models.UserTask
		if err := tx.FindRecord(models.CollectionTask, map[string]any{
			"user_email": u.Email,
			"task_type":  string(def.Type),
		}, &task); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return economy.ErrTaskNotStarted
			}
			return err
		}
		credit, err := economy.VerifyTask(def, &task, now)
		if err != nil {
			return err
		}
		result.Task = &task
		if def.Review == economy.ReviewManual {
			result.AwaitingReview = true
			return store.ErrNoop
		}
		if err := tx.UpdateRecord(models.CollectionTask, task.ID, map[string]any{
			"status":         string(task.Status),
			"completed_date": task.CompletedDate,
		}); err != nil {
			return err
		}
		economy.CreditReward(u, credit)
		result.Credited = credit
		return nil
	})
	if err != nil {
		return nil, s.Metrics.observe("task_verify", err)
	}
	result.User = updated
	if result.Credited > 0 {
		s.Metrics.taskRewarded(string(def.Type))
		log.Printf("✅ Task completed: %s %s +%d BONK", updated.Email, def.Type, result.Credited)
	}
	return result, nil
}

// PendingReviews lists manual-review tasks waiting for an admin, oldest first.
func (s *TaskService) PendingReviews(ctx context.Context, limit int) ([]models.UserTask, error) {
	var tasks []models.UserTask
	err := s.Store.ListRecords(ctx, models.CollectionTask, store.Query{
		Filter: map[string]any{
			"status":    string(models.TaskStatusPending),
			"task_type": string(models.TaskTypeWhatsAppVerify),
		},
		Sort:  "created_date",
		Limit: clampLimit(limit, pendingReviewLimit, pendingReviewLimit),
	}, &tasks)
	return tasks, err
}

// Review records an admin decision. Approval credits the task owner in the
// same write that marks the task verified.
func (s *TaskService) Review(ctx context.Context, taskID string, approve bool, reviewer string) (*VerifyResult, error) {
	var owner models.UserTask
	if err := s.Store.FindRecord(ctx, models.CollectionTask, map[string]any{"id": taskID}, &owner); err != nil {
		return nil, err
	}
	def, err := s.Params.TaskDefinition(owner.TaskType)
	if err != nil {
		return nil, err
	}
	now := s.now()
	result := &VerifyResult{}
	updated, err := s.Store.MutateUser(ctx, owner.UserEmail, func(u *models.User, tx store.Tx) error {
		var task models.UserTask
		if err := tx.FindRecord(models.CollectionTask, map[string]any{"id": taskID}, &task); err != nil {
			return err
		}
		credit, err := economy.ReviewTask(def, &task, approve, reviewer, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateRecord(models.CollectionTask, task.ID, map[string]any{
			"status":         string(task.Status),
			"completed_date": task.CompletedDate,
			"reviewed_by":    task.ReviewedBy,
		}); err != nil {
			return err
		}
		economy.CreditReward(u, credit)
		result.Task = &task
		result.Credited = credit
		return nil
	})
	if err != nil {
		return nil, s.Metrics.observe("task_review", err)
	}
	result.User = updated
	if result.Credited > 0 {
		s.Metrics.taskRewarded(string(def.Type))
	}
	log.Printf("🛂 Task %s reviewed by %s: approved=%t", taskID, reviewer, approve)
	return result, nil
}

func (s *TaskService) definition(rawType string) (economy.TaskDefinition, error) {
	taskType, err := economy.ParseTaskType(rawType)
	if err != nil {
		return economy.TaskDefinition{}, err
	}
	return s.Params.TaskDefinition(taskType)
}

func (s *TaskService) find(ctx context.Context, email string, taskType models.TaskType) (*models.UserTask, error) {
	var task models.UserTask
	err := s.Store.FindRecord(ctx, models.CollectionTask, map[string]any{
		"user_email": email,
		"task_type":  string(taskType),
	}, &task)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}
