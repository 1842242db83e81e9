package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/blogcore/internal/model"
)

// ContactServiceInterface はお問い合わせハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	Submit(ctx context.Context, name, email, subject, message string) (*model.Contact, error)
	List(ctx context.Context) ([]*model.Contact, error)
}

// ContactHandler はお問い合わせのHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{
		service: service,
	}
}

type contactResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func toContactResponse(c *model.Contact) contactResponse {
	return contactResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Subject:   c.Subject,
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}
}

// contactRequest はお問い合わせ送信リクエストのボディ。
type contactRequest struct {
	Name    string `json:"name" validate:"max=25"`
	Email   string `json:"email" validate:"required,email,max=50"`
	Subject string `json:"subject" validate:"max=100"`
	Message string `json:"message" validate:"required,max=500"`
}

// Submit はお問い合わせを受け付ける。
// POST /contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Submit(r.Context(), req.Name, req.Email, req.Subject, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactResponse(c))
}

// List は受け付けたお問い合わせの一覧を返す。
// GET /contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]contactResponse, len(contacts))
	for i, c := range contacts {
		resp[i] = toContactResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}
