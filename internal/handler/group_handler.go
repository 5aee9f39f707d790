package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/response"
)

// GroupHandler handles approver group endpoints.
type GroupHandler struct {
	service *service.GroupService
}

// NewGroupHandler creates a new group handler.
func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// List godoc
// @Summary List groups
// @Description List approver groups with pagination
// @Tags Groups
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param kind query string false "Kind filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	var filter models.GroupFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if kind := c.Query("kind"); kind != "" {
		k := models.GroupKind(kind)
		filter.Kind = &k
	}
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	filter.Search = c.Query("search")

	groups, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, groups, pagination)
}

// Get godoc
// @Summary Get group
// @Description Get group detail
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create group
// @Description Create a new approver group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body service.CreateGroupRequest true "Create group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	group, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, group)
}

// Update godoc
// @Summary Update group
// @Description Update an approver group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.UpdateGroupRequest true "Update group payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	var req service.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	group, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete group
// @Description Deactivate an approver group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Members godoc
// @Summary List group members
// @Description List current members of a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/members [get]
func (h *GroupHandler) Members(c *gin.Context) {
	members, err := h.service.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, members, nil)
}

// AddMember godoc
// @Summary Add group member
// @Description Enroll a user into a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body map[string]string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/members [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
	var payload struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "user_id required"))
		return
	}

	if err := h.service.AddMember(c.Request.Context(), c.Param("id"), payload.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RemoveMember godoc
// @Summary Remove group member
// @Description Remove a user from a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param userId path string true "User ID"
// @Success 204 {object} response.Envelope
// @Router /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	if err := h.service.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
