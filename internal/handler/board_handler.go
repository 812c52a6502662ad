package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type BoardHandler struct {
	boards    BoardStore
	members   MemberStore
	snapshots BoardViews
}

func NewBoardHandler(boards BoardStore, members MemberStore, snapshots BoardViews) *BoardHandler {
	return &BoardHandler{
		boards:    boards,
		members:   members,
		snapshots: snapshots,
	}
}

type CreateBoardRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateBoardRequest struct {
	Name string `json:"name" binding:"required"`
}

type JoinBoardRequest struct {
	Code string `json:"code" binding:"required"`
}

type BoardResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

func toBoardResponse(board *model.Board) BoardResponse {
	return BoardResponse{
		ID:        board.ID.String(),
		Name:      board.Name,
		Code:      board.Code,
		OwnerID:   board.OwnerID.String(),
		CreatedAt: board.CreatedAt.Format(time.RFC3339),
	}
}

// Create makes a board with the default columns and a fresh join code.
// @Summary   Create a board
// @Tags      Boards
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     body body CreateBoardRequest true "board"
// @Success   201 {object} BoardResponse
// @Router    /boards [post]
func (h *BoardHandler) Create(c *gin.Context) {
	ownerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	board := &model.Board{
		Name:    strings.TrimSpace(req.Name),
		OwnerID: ownerID,
	}
	if err := h.boards.Create(c.Request.Context(), board); err != nil {
		log.WithError(err).Error("board create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create board"})
		return
	}

	c.JSON(http.StatusCreated, toBoardResponse(board))
}

// GetAll lists the boards the caller is a member of.
// @Summary   List my boards
// @Tags      Boards
// @Security  BearerAuth
// @Produce   json
// @Success   200 {array} BoardResponse
// @Router    /boards [get]
func (h *BoardHandler) GetAll(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	boards, err := h.boards.ListForMember(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve boards"})
		return
	}

	response := make([]BoardResponse, len(boards))
	for i := range boards {
		response[i] = toBoardResponse(&boards[i])
	}
	c.JSON(http.StatusOK, response)
}

// GetByID returns the board snapshot: columns with their settings and all tasks.
// @Summary   Board snapshot
// @Tags      Boards
// @Security  BearerAuth
// @Produce   json
// @Param     id path string true "board id"
// @Success   200 {object} engine.Snapshot
// @Router    /boards/{id} [get]
func (h *BoardHandler) GetByID(c *gin.Context) {
	_, boardID, ok := boardAccess(c, h.members)
	if !ok {
		return
	}

	snap, err := h.snapshots.LoadSnapshot(c.Request.Context(), boardID)
	if errors.Is(err, repository.ErrBoardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
		return
	}
	if err != nil {
		log.WithError(err).WithField("board_id", boardID).Error("snapshot load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve board"})
		return
	}

	c.JSON(http.StatusOK, snap)
}

// Join adds the caller to the board identified by a join code.
// @Summary   Join a board by code
// @Tags      Boards
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     body body JoinBoardRequest true "join code"
// @Success   200 {object} BoardResponse
// @Router    /boards/join [post]
func (h *BoardHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req JoinBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	board, err := h.boards.GetByCode(c.Request.Context(), req.Code)
	if errors.Is(err, repository.ErrBoardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve board"})
		return
	}

	if err := h.members.AddMember(c.Request.Context(), board.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join board"})
		return
	}

	c.JSON(http.StatusOK, toBoardResponse(board))
}

type MemberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JoinedAt string `json:"joined_at"`
}

// Members lists who can be assigned tasks on the board.
// @Summary   List board members
// @Tags      Boards
// @Security  BearerAuth
// @Produce   json
// @Param     id path string true "board id"
// @Success   200 {array} MemberResponse
// @Router    /boards/{id}/members [get]
func (h *BoardHandler) Members(c *gin.Context) {
	_, boardID, ok := boardAccess(c, h.members)
	if !ok {
		return
	}

	members, err := h.members.ListMembers(c.Request.Context(), boardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	response := make([]MemberResponse, len(members))
	for i, m := range members {
		response[i] = MemberResponse{
			ID:       m.UserID.String(),
			Name:     m.User.Name,
			Email:    m.User.Email,
			JoinedAt: m.JoinedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, response)
}

// ownedBoard loads the :id board and checks the caller owns it. It writes the
// error response itself; callers return when ok is false.
func (h *BoardHandler) ownedBoard(c *gin.Context) (*model.Board, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}

	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board ID format"})
		return nil, false
	}

	board, err := h.boards.GetByID(c.Request.Context(), boardID)
	if errors.Is(err, repository.ErrBoardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve board"})
		return nil, false
	}
	if board.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the board owner can do that"})
		return nil, false
	}
	return board, true
}

// Update renames a board. Only its owner may.
// @Summary   Rename a board
// @Tags      Boards
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id   path string true "board id"
// @Param     body body UpdateBoardRequest true "new name"
// @Success   200 {object} BoardResponse
// @Router    /boards/{id} [put]
func (h *BoardHandler) Update(c *gin.Context) {
	board, ok := h.ownedBoard(c)
	if !ok {
		return
	}

	var req UpdateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if err := h.boards.Rename(c.Request.Context(), board.ID, name); err != nil {
		log.WithError(err).WithField("board_id", board.ID).Error("board rename failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update board"})
		return
	}
	h.snapshots.Evict(c.Request.Context(), board.ID)

	board.Name = name
	c.JSON(http.StatusOK, toBoardResponse(board))
}

// Delete removes a board with its columns, tasks and memberships. Only its
// owner may.
// @Summary   Delete a board
// @Tags      Boards
// @Security  BearerAuth
// @Param     id path string true "board id"
// @Success   204
// @Router    /boards/{id} [delete]
func (h *BoardHandler) Delete(c *gin.Context) {
	board, ok := h.ownedBoard(c)
	if !ok {
		return
	}

	err := h.boards.Delete(c.Request.Context(), board.ID)
	if errors.Is(err, repository.ErrBoardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
		return
	}
	if err != nil {
		log.WithError(err).WithField("board_id", board.ID).Error("board delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete board"})
		return
	}
	h.snapshots.Evict(c.Request.Context(), board.ID)

	c.Status(http.StatusNoContent)
}
