package handler

import (
	"errors"
	"net/http"
	"strings"

	"taskboard/internal/engine"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type TaskHandler struct {
	tasks   TaskStore
	members MemberStore
	cache   CacheEvicter
}

func NewTaskHandler(tasks TaskStore, members MemberStore, cache CacheEvicter) *TaskHandler {
	return &TaskHandler{
		tasks:   tasks,
		members: members,
		cache:   cache,
	}
}

type CreateTaskRequest struct {
	Title  string        `json:"title" binding:"required"`
	Status engine.Status `json:"status"`
	Color  *string       `json:"color"`
}

// Create adds a task to the end of the backlog.
// @Summary   Create a task
// @Tags      Tasks
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id   path string true "board id"
// @Param     body body CreateTaskRequest true "task"
// @Success   201 {object} engine.Task
// @Router    /boards/{id}/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, boardID, ok := boardAccess(c, h.members)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}
	if req.Status != "" && req.Status != engine.StatusBacklog {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New tasks must start in Backlog"})
		return
	}

	task := &model.Task{
		BoardID:   boardID,
		Status:    string(engine.StatusBacklog),
		Title:     title,
		Color:     req.Color,
		CreatedBy: userID,
	}
	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		log.WithError(err).WithField("board_id", boardID).Error("task create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}
	h.cache.Evict(c.Request.Context(), boardID)

	c.JSON(http.StatusCreated, task.ToEngine())
}

// Update changes a task's status (a move, checked against the column WIP
// limits) and/or its details.
// @Summary   Update or move a task
// @Tags      Tasks
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id      path string true "board id"
// @Param     task_id path string true "task id"
// @Param     body    body engine.TaskUpdate true "changes"
// @Success   200 {object} engine.Task
// @Failure   409 {object} map[string]string "wip-limit-reached"
// @Router    /boards/{id}/tasks/{task_id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	_, boardID, ok := boardAccess(c, h.members)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req engine.TaskUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	ctx := c.Request.Context()
	task, err := h.tasks.GetByID(ctx, boardID, taskID)
	if errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		return
	}

	changed, msg := h.applyDetails(c, boardID, task, req)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if !changed && req.Status == nil {
		c.JSON(http.StatusOK, task.ToEngine())
		return
	}

	var planner repository.Planner
	if req.Status != nil {
		planner = func(snap engine.Snapshot) (*repository.Placement, error) {
			plan := planStatusChange(snap, taskID.String(), *req.Status, req.Position)
			if !plan.Accepted {
				return nil, &engine.RejectionError{TaskID: plan.TaskID, Reason: plan.Reason}
			}
			if plan.Noop() {
				return nil, nil
			}
			return &repository.Placement{Status: string(plan.NewStatus), Position: plan.To.Index}, nil
		}
	}

	err = h.tasks.Update(ctx, task, changed, planner)
	if reason, rejected := engine.IsRejection(err); rejected {
		status := http.StatusBadRequest
		if reason == engine.ReasonWipLimitReached {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": "Move rejected", "reason": reason})
		return
	}
	if errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		log.WithError(err).WithField("task_id", taskID).Error("task update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}
	h.cache.Evict(ctx, boardID)

	c.JSON(http.StatusOK, task.ToEngine())
}

// applyDetails copies the detail fields of req onto task. It returns a
// client error message when a field is unacceptable.
func (h *TaskHandler) applyDetails(c *gin.Context, boardID uuid.UUID, task *model.Task, req engine.TaskUpdate) (bool, string) {
	changed := false
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return false, "Title is required"
		}
		task.Title = title
		changed = true
	}
	if req.Description != nil {
		task.Description = req.Description
		changed = true
	}
	if req.Color != nil {
		task.Color = req.Color
		changed = true
	}
	if req.AssignedTo != nil {
		changed = true
		if *req.AssignedTo == "" {
			task.AssignedTo = nil
			return changed, ""
		}
		assignee, err := uuid.Parse(*req.AssignedTo)
		if err != nil {
			return false, "Invalid assignee ID format"
		}
		member, err := h.members.IsMember(c.Request.Context(), boardID, assignee)
		if err != nil || !member {
			return false, "Assignee must be a board member"
		}
		task.AssignedTo = &assignee
	}
	return changed, ""
}

// planStatusChange runs the same planner the clients use, so the server
// enforces WIP limits with identical rules.
func planStatusChange(snap engine.Snapshot, taskID string, status engine.Status, position *int) engine.Plan {
	p := engine.Project(snap.Tasks, snap.Columns)
	to := engine.NewCodec(p.Schema()).Decode(status)

	index := 0
	if b, ok := p.Bucket(to.Column); ok {
		index = len(b.List(to.Subsection))
	}
	if position != nil {
		index = *position
	}

	return engine.PlanMove(p, engine.Move{
		TaskID: taskID,
		To:     engine.Position{Location: to, Index: index},
	})
}

// Delete removes a task.
// @Summary   Delete a task
// @Tags      Tasks
// @Security  BearerAuth
// @Param     id      path string true "board id"
// @Param     task_id path string true "task id"
// @Success   204
// @Router    /boards/{id}/tasks/{task_id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	_, boardID, ok := boardAccess(c, h.members)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	err = h.tasks.Delete(c.Request.Context(), boardID, taskID)
	if errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}
	h.cache.Evict(c.Request.Context(), boardID)

	c.Status(http.StatusNoContent)
}
