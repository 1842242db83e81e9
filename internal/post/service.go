// Package post は記事とコメントのドメインロジックを提供する。
// 保存前に本文をサニタイズし、記事本文は許可リストのHTML、
// タイトル・著者名・コメントはプレーンテキストとして扱う。
package post

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/repository"
	"github.com/hitoshi/blogcore/internal/security"
)

// UpdateParams は記事更新時の変更内容。nilのフィールドは変更しない。
type UpdateParams struct {
	Title   *string
	Author  *string
	Content *string
}

// Service は記事・コメントのサービス層。
type Service struct {
	posts        repository.PostRepository
	comments     repository.CommentRepository
	sanitizer    security.ContentSanitizer
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	sanitizer security.ContentSanitizer,
	storeTimeout time.Duration,
) *Service {
	return &Service{
		posts:        posts,
		comments:     comments,
		sanitizer:    sanitizer,
		storeTimeout: storeTimeout,
	}
}

// ListPosts は全記事を新しい順で返す。
func (s *Service) ListPosts(ctx context.Context) ([]*model.Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, model.NewStoreError("post.list", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

// GetPost は指定IDの記事を返す。存在しない場合は POST_NOT_FOUND を返す。
func (s *Service) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreError("post.find_by_id", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// CreatePost は記事をサニタイズして作成する。
func (s *Service) CreatePost(ctx context.Context, title, author, content string) (*model.Post, error) {
	post := &model.Post{
		Title:   s.sanitizer.SanitizeText(title),
		Author:  s.sanitizer.SanitizeText(author),
		Content: s.sanitizer.SanitizeHTML(content),
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, model.NewStoreError("post.create", err)
	}

	slog.Info("記事を作成しました",
		slog.Int64("post_id", post.ID),
		slog.String("author", post.Author),
	)
	return post, nil
}

// UpdatePost は記事を更新する。指定されたフィールドのみサニタイズして上書きする。
func (s *Service) UpdatePost(ctx context.Context, id int64, params UpdateParams) (*model.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		post.Title = s.sanitizer.SanitizeText(*params.Title)
	}
	if params.Author != nil {
		post.Author = s.sanitizer.SanitizeText(*params.Author)
	}
	if params.Content != nil {
		post.Content = s.sanitizer.SanitizeHTML(*params.Content)
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPostNotFoundError(id)
		}
		return nil, model.NewStoreError("post.update", err)
	}
	return post, nil
}

// DeletePost は記事を削除する。コメントはCASCADE削除される。
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.posts.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPostNotFoundError(id)
		}
		return model.NewStoreError("post.delete", err)
	}

	slog.Info("記事を削除しました", slog.Int64("post_id", id))
	return nil
}

// ListComments は記事のコメントを古い順で返す。記事が存在しない場合は POST_NOT_FOUND を返す。
func (s *Service) ListComments(ctx context.Context, postID int64) ([]*model.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	comments, err := s.comments.ListByPostID(ctx, postID)
	if err != nil {
		return nil, model.NewStoreError("comment.list", err)
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	return comments, nil
}

// AddComment は記事にコメントを追加する。コメント本文はタグを全て除去して保存する。
func (s *Service) AddComment(ctx context.Context, postID int64, author, content string) (*model.Comment, error) {
	comment := &model.Comment{
		PostID:  postID,
		Author:  s.sanitizer.SanitizeText(author),
		Content: s.sanitizer.SanitizeText(content),
	}
	fields := map[string]string{}
	if comment.Author == "" {
		fields["author"] = "required"
	}
	if comment.Content == "" {
		fields["content"] = "required"
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPostNotFoundError(postID)
		}
		return nil, model.NewStoreError("comment.create", err)
	}
	return comment, nil
}

// DeleteComment はコメントを削除する。存在しない場合は COMMENT_NOT_FOUND を返す。
func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.comments.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCommentNotFoundError(id)
		}
		return model.NewStoreError("comment.delete", err)
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// validatePost はサニタイズ後に空になった必須フィールドを検出する。
func validatePost(post *model.Post) error {
	fields := map[string]string{}
	if post.Title == "" {
		fields["title"] = "required"
	}
	if post.Author == "" {
		fields["author"] = "required"
	}
	if post.Content == "" {
		fields["content"] = "required"
	}
	if len(fields) > 0 {
		return model.NewValidationError(fields)
	}
	return nil
}
