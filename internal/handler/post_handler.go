package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/post"
)

// PostServiceInterface は記事・コメントハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	ListPosts(ctx context.Context) ([]*model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	CreatePost(ctx context.Context, title, author, content string) (*model.Post, error)
	UpdatePost(ctx context.Context, id int64, params post.UpdateParams) (*model.Post, error)
	DeletePost(ctx context.Context, id int64) error
	ListComments(ctx context.Context, postID int64) ([]*model.Comment, error)
	AddComment(ctx context.Context, postID int64, author, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// PostHandler は記事とコメントのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{
		service: service,
	}
}

type postResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Author:    p.Author,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type commentResponse struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    c.Author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// createPostRequest は記事作成リクエストのボディ。
type createPostRequest struct {
	Title   string `json:"title" validate:"required,max=50"`
	Author  string `json:"author" validate:"required,max=25"`
	Content string `json:"content" validate:"required"`
}

// updatePostRequest は記事更新リクエストのボディ。省略したフィールドは変更しない。
type updatePostRequest struct {
	Title   *string `json:"title" validate:"omitnil,min=1,max=50"`
	Author  *string `json:"author" validate:"omitnil,min=1,max=25"`
	Content *string `json:"content" validate:"omitnil,min=1"`
}

// createCommentRequest はコメント投稿リクエストのボディ。
type createCommentRequest struct {
	Author  string `json:"author" validate:"required,max=25"`
	Content string `json:"content" validate:"required,max=1000"`
}

// ListPosts は記事一覧を返す。
// GET /posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]postResponse, len(posts))
	for i, p := range posts {
		resp[i] = toPostResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPost は指定IDの記事を返す。
// GET /post/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// CreatePost は記事を作成する。
// POST /add-post
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.CreatePost(r.Context(), req.Title, req.Author, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// UpdatePost は記事を部分更新する。
// PATCH /post/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req updatePostRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.UpdatePost(r.Context(), id, post.UpdateParams{
		Title:   req.Title,
		Author:  req.Author,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// DeletePost は記事を削除する。コメントも合わせて削除される。
// DELETE /post/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePost(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComments は記事のコメント一覧を返す。
// GET /post/{id}/comments
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), postID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]commentResponse, len(comments))
	for i, c := range comments {
		resp[i] = toCommentResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddComment は記事にコメントを投稿する。
// POST /post/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req createCommentRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.AddComment(r.Context(), postID, req.Author, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

// DeleteComment はコメントを削除する。
// DELETE /comment/{id}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteComment(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
