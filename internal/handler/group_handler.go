package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sharediary/internal/middleware"
	"github.com/hitoshi/sharediary/internal/model"
	"github.com/hitoshi/sharediary/internal/repository"
)

// GroupServiceInterface はグループハンドラーが必要とするサービスインターフェース。
type GroupServiceInterface interface {
	ListGroups(ctx context.Context, userID int64) ([]*model.Group, error)
	CreateGroup(ctx context.Context, userID int64, name string, description *string) (*model.Group, error)
	GetGroup(ctx context.Context, userID, groupID int64) (*model.Group, error)
	UpdateGroup(ctx context.Context, userID, groupID int64, name, description *string) (*model.Group, error)
	DeleteGroup(ctx context.Context, userID, groupID int64) error
	ListMembers(ctx context.Context, userID, groupID int64) ([]repository.MemberWithUser, error)
	AddMember(ctx context.Context, userID, groupID, targetUserID int64, role string) (*model.GroupMember, error)
	RemoveMember(ctx context.Context, userID, groupID, targetUserID int64) error
}

// GroupHandler はグループ関連のHTTPハンドラー。
type GroupHandler struct {
	service  GroupServiceInterface
	validate *validator.Validate
}

// NewGroupHandler はGroupHandlerを生成する。
func NewGroupHandler(service GroupServiceInterface) *GroupHandler {
	return &GroupHandler{
		service:  service,
		validate: newValidator(),
	}
}

type createGroupRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type addMemberRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Role   string `json:"role"`
}

// List は自分が所属するグループの一覧を返す。
// GET /api/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	groups, err := h.service.ListGroups(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// Create はグループを作成し、作成者を管理者として登録する。
// POST /api/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	g, err := h.service.CreateGroup(r.Context(), user.ID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Get はグループの詳細を返す。
// GET /api/groups/{groupID}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	g, err := h.service.GetGroup(r.Context(), user.ID, groupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Update はグループ名・説明を更新する。指定されなかった項目は変更しない。
// PATCH /api/groups/{groupID}
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	var req updateGroupRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	g, err := h.service.UpdateGroup(r.Context(), user.ID, groupID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Delete はグループを削除する。
// DELETE /api/groups/{groupID}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), user.ID, groupID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers はグループのメンバー一覧を返す。
// GET /api/groups/{groupID}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	members, err := h.service.ListMembers(r.Context(), user.ID, groupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember はユーザーをグループに追加する。roleの既定はmember。
// POST /api/groups/{groupID}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	member, err := h.service.AddMember(r.Context(), user.ID, groupID, req.UserID, req.Role)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMember はユーザーをグループから外す。
// DELETE /api/groups/{groupID}/members/{userID}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.groupRequest(w, r)
	if !ok {
		return
	}
	targetID, err := parseIDParam(r, "userID")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.service.RemoveMember(r.Context(), user.ID, groupID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// groupRequest は認証ユーザーとURLのgroupIDを取り出す。失敗時は応答を書き込んでfalseを返す。
func (h *GroupHandler) groupRequest(w http.ResponseWriter, r *http.Request) (*model.User, int64, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return nil, 0, false
	}
	groupID, err := parseIDParam(r, "groupID")
	if err != nil {
		handleServiceError(w, err)
		return nil, 0, false
	}
	return user, groupID, true
}

// requireUser はセッションミドルウェアが設定したユーザーを返す。
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return nil, false
	}
	return user, true
}
