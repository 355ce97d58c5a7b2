package economy

import (
	"strings"
	"time"

	"bonkers-airdrop/models"
)

// ReviewMode separates tasks that complete on verify from tasks an admin must
// approve.
type ReviewMode string

const (
	ReviewAuto   ReviewMode = "auto"
	ReviewManual ReviewMode = "manual"
)

// TelegramGroupURL is where telegram_join sends the user.
const TelegramGroupURL = "https://t.me/bonkers_airdrop"

// TaskDefinition describes one entry of the task catalog.
type TaskDefinition struct {
	Type         models.TaskType   `json:"task_type"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Reward       int64             `json:"reward_tokens"`
	Review       ReviewMode        `json:"review"`
	RequiredData []string          `json:"required_data,omitempty"`
	DefaultData  map[string]string `json:"-"`
}

// TaskCatalog returns every task with its reward from params.
func (p Params) TaskCatalog() []TaskDefinition {
	defs := make([]TaskDefinition, 0, len(models.TaskTypes))
	for _, t := range models.TaskTypes {
		def, _ := p.TaskDefinition(t)
		defs = append(defs, def)
	}
	return defs
}

// TaskDefinition looks up one task type.
func (p Params) TaskDefinition(t models.TaskType) (TaskDefinition, error) {
	switch t {
	case models.TaskTypeTwitterConnect:
		return TaskDefinition{
			Type:        t,
			Title:       "Connect Twitter",
			Description: "Link your Twitter account",
			Reward:      p.TaskRewards[t],
			Review:      ReviewAuto,
			DefaultData: map[string]string{"redirect_url": ""},
		}, nil
	case models.TaskTypeWhatsAppVerify:
		return TaskDefinition{
			Type:         t,
			Title:        "Verify WhatsApp",
			Description:  "Verify your WhatsApp number",
			Reward:       p.TaskRewards[t],
			Review:       ReviewManual,
			RequiredData: []string{"phone_number"},
		}, nil
	case models.TaskTypeTelegramJoin:
		return TaskDefinition{
			Type:        t,
			Title:       "Join Telegram",
			Description: "Join our Telegram group",
			Reward:      p.TaskRewards[t],
			Review:      ReviewAuto,
			DefaultData: map[string]string{"telegram_group": TelegramGroupURL},
		}, nil
	}
	return TaskDefinition{}, ErrUnknownTask
}

// ParseTaskType resolves a path parameter to a task type.
func ParseTaskType(raw string) (models.TaskType, error) {
	t := models.TaskType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range models.TaskTypes {
		if t == known {
			return t, nil
		}
	}
	return "", ErrUnknownTask
}

// StartTask returns the record to persist for a start request. When the user
// already has a record for the type it is returned unchanged with created
// false; a rejected record cannot be restarted.
func StartTask(def TaskDefinition, email string, existing *models.UserTask, data map[string]string) (*models.UserTask, bool, error) {
	if existing != nil {
		if existing.Status == models.TaskStatusRejected {
			return existing, false, ErrTaskRejected
		}
		return existing, false, nil
	}

	taskData := make(map[string]string, len(def.DefaultData)+len(data))
	for k, v := range def.DefaultData {
		taskData[k] = v
	}
	for k, v := range data {
		taskData[k] = strings.TrimSpace(v)
	}
	for _, key := range def.RequiredData {
		if taskData[key] == "" {
			return nil, false, ErrInvalidTaskData
		}
	}

	return &models.UserTask{
		UserEmail:    email,
		TaskType:     def.Type,
		Status:       models.TaskStatusPending,
		RewardTokens: def.Reward,
		TaskData:     taskData,
	}, true, nil
}

// VerifyTask moves an auto-review task from pending to completed and returns
// the reward to credit. Manual-review tasks stay pending and credit nothing.
func VerifyTask(def TaskDefinition, task *models.UserTask, now time.Time) (int64, error) {
	if err := checkOpen(task); err != nil {
		return 0, err
	}
	if def.Review == ReviewManual {
		return 0, nil
	}
	completedAt := now.UTC()
	task.Status = models.TaskStatusCompleted
	task.CompletedDate = &completedAt
	return task.RewardTokens, nil
}

// ReviewTask is the admin decision on a manual-review task. Approval moves it
// to verified and returns the reward; rejection credits nothing.
func ReviewTask(def TaskDefinition, task *models.UserTask, approve bool, reviewer string, now time.Time) (int64, error) {
	if def.Review != ReviewManual {
		return 0, ErrTaskNotReviewable
	}
	if err := checkOpen(task); err != nil {
		return 0, err
	}
	reviewedAt := now.UTC()
	task.ReviewedBy = reviewer
	task.CompletedDate = &reviewedAt
	if !approve {
		task.Status = models.TaskStatusRejected
		return 0, nil
	}
	task.Status = models.TaskStatusVerified
	return task.RewardTokens, nil
}

func checkOpen(task *models.UserTask) error {
	switch {
	case task == nil:
		return ErrTaskNotStarted
	case task.Status.Rewarded():
		return ErrTaskAlreadyRewarded
	case task.Status == models.TaskStatusRejected:
		return ErrTaskRejected
	case task.Status != models.TaskStatusPending:
		return ErrTaskNotStarted
	}
	return nil
}
