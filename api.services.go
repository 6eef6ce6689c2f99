package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type BookServiceProvider interface {
	Create(ctx context.Context, input BookInput) (Book, error)
	GetOne(ctx context.Context, id int64) (Book, error)
	Update(ctx context.Context, id int64, input BookInput) (Book, error)
	Delete(ctx context.Context, id int64) (DeletedBook, error)
	GetAll(ctx context.Context) ([]Book, error)
	Search(ctx context.Context, query string) ([]Book, error)
	Reset(ctx context.Context, seed []Book) ([]Book, error)
}

type BookService struct {
	logger    *zap.Logger
	config    *Config
	clock     Clocker
	ids       UIDHandler
	validator *validator.Validate
	storage   BookStorage
	queue     Queuer
	results   ResultBackend
}

func NewBookService(
	logger *zap.Logger,
	config *Config,
	clock Clocker,
	ids UIDHandler,
	storage BookStorage,
	queue Queuer,
	results ResultBackend,
) BookServiceProvider {
	return &BookService{
		logger:    logger,
		config:    config,
		clock:     clock,
		ids:       ids,
		validator: validator.New(),
		storage:   storage,
		queue:     queue,
		results:   results,
	}
}

// Create validates and stores a new book then submits an `added` notification.
func (bs *BookService) Create(ctx context.Context, input BookInput) (Book, error) {
	book, err := bs.ValidateInput(input)
	if err != nil {
		return Book{}, err
	}

	book, err = bs.storage.Add(ctx, book)
	if err != nil {
		return Book{}, err
	}

	bs.notify(ctx, ActionAdded, book.Snapshot())
	return book, nil
}

func (bs *BookService) GetOne(ctx context.Context, id int64) (Book, error) {
	return bs.storage.GetOne(ctx, id)
}

// Update replaces all editable fields of an existing book. No notification
// is submitted on update.
func (bs *BookService) Update(ctx context.Context, id int64, input BookInput) (Book, error) {
	book, err := bs.ValidateInput(input)
	if err != nil {
		return Book{}, err
	}
	book.ID = id
	return bs.storage.Update(ctx, book)
}

// Delete removes the book then submits a `deleted` notification.
func (bs *BookService) Delete(ctx context.Context, id int64) (DeletedBook, error) {
	book, err := bs.storage.Delete(ctx, id)
	if err != nil {
		return DeletedBook{}, err
	}

	snapshot := book.Snapshot()
	bs.notify(ctx, ActionDeleted, snapshot)
	return snapshot, nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]Book, error) {
	return bs.storage.GetAll(ctx)
}

// Search returns the books matching the query. A blank query gives no result.
func (bs *BookService) Search(ctx context.Context, query string) ([]Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Book{}, nil
	}
	return bs.storage.Search(ctx, query)
}

// Reset empties the store and inserts the seed books. No notification is sent.
func (bs *BookService) Reset(ctx context.Context, seed []Book) ([]Book, error) {
	if err := bs.storage.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to empty the store: %w", err)
	}

	books := make([]Book, 0, len(seed))
	for _, b := range seed {
		book, err := bs.storage.Add(ctx, b)
		if err != nil {
			return books, fmt.Errorf("failed to add seed book %q: %w", b.Title, err)
		}
		books = append(books, book)
	}
	return books, nil
}

// ValidateInput checks the form values and converts them into a book.
func (bs *BookService) ValidateInput(input BookInput) (Book, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.Year = strings.TrimSpace(input.Year)
	input.Genre = strings.TrimSpace(input.Genre)

	if err := bs.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return Book{}, ErrMissingRequiredField
		}
		return Book{}, err
	}

	book := Book{Title: input.Title, Author: input.Author}
	if input.Year != "" {
		year, err := strconv.ParseInt(input.Year, 10, 32)
		if err != nil {
			return Book{}, ErrInvalidYear
		}
		y := int(year)
		book.Year = &y
	}
	if input.Genre != "" {
		genre := input.Genre
		book.Genre = &genre
	}
	return book, nil
}

// notify submits a notification job once the mutation is committed. Any
// failure is logged and never reported to the caller.
func (bs *BookService) notify(ctx context.Context, action NotificationAction, snapshot DeletedBook) {
	logger := bs.logger.With(
		zap.String("request.id", GetValueFromContext(ctx, RequestIDContextKey)),
		zap.String("job.action", string(action)),
	)

	recipient := bs.config.NotifyEmail
	if recipient == "" {
		logger.Warn("service: no notification recipient configured: notification skipped")
		return
	}

	job := NewNotificationJob(bs.ids.Generate(JobIDPrefix), action, snapshot, recipient, bs.clock.Now())
	logger = logger.With(zap.String("job.id", job.ID))

	qCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bs.config.Queue.EnqueueTimeout)
	defer cancel()

	result := JobResult{
		JobID:     job.ID,
		Action:    job.Action,
		Status:    JobSubmitted,
		UpdatedAt: job.SubmittedAt,
	}
	if err := bs.results.Record(qCtx, result); err != nil {
		logger.Warn("service: failed to record notification submission", zap.Error(err))
	}

	if err := bs.queue.Push(qCtx, job); err != nil {
		logger.Error("service: failed to push notification to queue", zap.String("qid", NotificationsQueue), zap.Error(err))
		result.Status, result.Error = JobFailed, err.Error()
		_ = bs.results.Record(context.WithoutCancel(ctx), result)
		return
	}
	logger.Info("service: notification submitted")
}
