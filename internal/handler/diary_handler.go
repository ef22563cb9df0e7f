package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sharediary/internal/diary"
	"github.com/hitoshi/sharediary/internal/model"
)

// DiaryServiceInterface は日記ハンドラーが必要とするサービスインターフェース。
type DiaryServiceInterface interface {
	ListEntries(ctx context.Context, userID, groupID int64) ([]*model.DiaryEntry, error)
	CreateEntry(ctx context.Context, userID, groupID int64, in diary.EntryInput) (*model.DiaryEntry, error)
	GetEntry(ctx context.Context, userID, entryID int64) (*model.DiaryEntry, error)
	UpdateEntry(ctx context.Context, userID, entryID int64, in diary.EntryInput) (*model.DiaryEntry, error)
	DeleteEntry(ctx context.Context, userID, entryID int64) error
}

// DiaryHandler は日記関連のHTTPハンドラー。
type DiaryHandler struct {
	service  DiaryServiceInterface
	validate *validator.Validate
}

// NewDiaryHandler はDiaryHandlerを生成する。
func NewDiaryHandler(service DiaryServiceInterface) *DiaryHandler {
	return &DiaryHandler{
		service:  service,
		validate: newValidator(),
	}
}

type entryRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	ImageURL *string `json:"imageUrl"`
}

func (req entryRequest) input() diary.EntryInput {
	return diary.EntryInput{
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	}
}

// List はグループの日記を新しい順に返す。
// GET /api/groups/{groupID}/diaries
func (h *DiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	groupID, err := parseIDParam(r, "groupID")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	entries, err := h.service.ListEntries(r.Context(), user.ID, groupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Create はグループに日記を投稿する。
// POST /api/groups/{groupID}/diaries
func (h *DiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	groupID, err := parseIDParam(r, "groupID")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), user.ID, groupID, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Get は日記を返す。
// GET /api/diaries/{entryID}
func (h *DiaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, entryID, ok := entryRequestParams(w, r)
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(r.Context(), user.ID, entryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Update は日記を更新する。指定されなかった項目は変更しない。
// PATCH /api/diaries/{entryID}
func (h *DiaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, entryID, ok := entryRequestParams(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), user.ID, entryID, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Delete は日記を削除する。
// DELETE /api/diaries/{entryID}
func (h *DiaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, entryID, ok := entryRequestParams(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteEntry(r.Context(), user.ID, entryID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryRequestParams(w http.ResponseWriter, r *http.Request) (*model.User, int64, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return nil, 0, false
	}
	entryID, err := parseIDParam(r, "entryID")
	if err != nil {
		handleServiceError(w, err)
		return nil, 0, false
	}
	return user, entryID, true
}
