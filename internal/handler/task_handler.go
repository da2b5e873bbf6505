package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/pkg/response"
)

type taskService interface {
	CreateTask(ctx context.Context, principalID, familyID string, req dto.CreateTaskRequest) (*models.Task, error)
	ListTasks(ctx context.Context, principalID, familyID, childID string) ([]models.Task, error)
	CompleteTask(ctx context.Context, principalID, taskID string) (*dto.TaskCompletion, error)
	CreateReward(ctx context.Context, principalID, familyID string, req dto.CreateRewardRequest) (*models.Reward, error)
	ListRewards(ctx context.Context, principalID, familyID string) ([]models.Reward, error)
	RedeemReward(ctx context.Context, principalID, rewardID string, req dto.RedeemRewardRequest) (*dto.RedeemResult, error)
	DeleteTask(ctx context.Context, principalID, taskID string) error
	DeleteReward(ctx context.Context, principalID, rewardID string) error
}

// TaskHandler exposes chores and rewards backed by the points ledger.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(svc taskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// CreateTask godoc
// @Summary Create a task for a child
// @Tags Tasks
// @Accept json
// @Produce json
// @Param familyId path string true "Family ID"
// @Param payload body dto.CreateTaskRequest true "Task"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /families/{familyId}/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.CreateTaskRequest
	if !bindJSON(c, &req, "invalid task payload") {
		return
	}
	task, err := h.service.CreateTask(c.Request.Context(), claims.UserID, c.Param("familyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// ListTasks godoc
// @Summary List tasks of a family
// @Tags Tasks
// @Produce json
// @Param familyId path string true "Family ID"
// @Param child_id query string false "Only tasks of this child"
// @Success 200 {object} response.Envelope
// @Router /families/{familyId}/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListTasks(c.Request.Context(), claims.UserID, c.Param("familyId"), c.Query("child_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CompleteTask godoc
// @Summary Complete a task
// @Description Marks a pending task completed and awards its points exactly once
// @Tags Tasks
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tasks/{taskId}/complete [post]
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	res, err := h.service.CompleteTask(c.Request.Context(), claims.UserID, c.Param("taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags Tasks
// @Param taskId path string true "Task ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{taskId} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	if err := h.service.DeleteTask(c.Request.Context(), claims.UserID, c.Param("taskId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateReward godoc
// @Summary Create a reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param familyId path string true "Family ID"
// @Param payload body dto.CreateRewardRequest true "Reward"
// @Success 201 {object} response.Envelope
// @Router /families/{familyId}/rewards [post]
func (h *TaskHandler) CreateReward(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.CreateRewardRequest
	if !bindJSON(c, &req, "invalid reward payload") {
		return
	}
	reward, err := h.service.CreateReward(c.Request.Context(), claims.UserID, c.Param("familyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reward)
}

// ListRewards godoc
// @Summary List rewards of a family
// @Tags Rewards
// @Produce json
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Router /families/{familyId}/rewards [get]
func (h *TaskHandler) ListRewards(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListRewards(c.Request.Context(), claims.UserID, c.Param("familyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// RedeemReward godoc
// @Summary Redeem a reward for a child
// @Tags Rewards
// @Accept json
// @Produce json
// @Param rewardId path string true "Reward ID"
// @Param payload body dto.RedeemRewardRequest true "Child"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rewards/{rewardId}/redeem [post]
func (h *TaskHandler) RedeemReward(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.RedeemRewardRequest
	if !bindJSON(c, &req, "invalid redeem payload") {
		return
	}
	res, err := h.service.RedeemReward(c.Request.Context(), claims.UserID, c.Param("rewardId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// DeleteReward godoc
// @Summary Delete a reward
// @Tags Rewards
// @Param rewardId path string true "Reward ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rewards/{rewardId} [delete]
func (h *TaskHandler) DeleteReward(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	if err := h.service.DeleteReward(c.Request.Context(), claims.UserID, c.Param("rewardId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
