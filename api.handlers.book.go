package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Flash messages displayed after a mutation.
const (
	MsgBookAdded       = "Book added successfully."
	MsgBookUpdated     = "Book updated successfully."
	MsgBookDeleted     = "Book deleted."
	MsgBookNotFound    = "Book not found."
	MsgRequiredFields  = "Title and author are required."
	MsgInvalidYear     = "Year must be a number."
	MsgUnexpectedError = "Something went wrong. Please try again."
)

// Index redirects to the books listing.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/books", http.StatusFound)
}

// ListBooks renders all books ordered by title.
func (api *APIHandler) ListBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	books, err := api.bookService.GetAll(r.Context())
	if err != nil {
		api.internalError(w, r, "failed to get all books", err)
		return
	}
	api.render(w, r, PageList, PageData{Title: "Books", Books: books})
}

// BooksPage serves the GET requests on `/books/:id`.
func (api *APIHandler) BooksPage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch ps.ByName("id") {
	case "new":
		api.NewBookForm(w, r)
	case "search":
		api.SearchBooks(w, r)
	default:
		if id, ok := ParseBookID(ps.ByName("id")); ok {
			http.Redirect(w, r, bookPath(id, "edit"), http.StatusFound)
			return
		}
		api.NotFound().ServeHTTP(w, r)
	}
}

// BooksForm serves the POST requests on `/books/:id`.
func (api *APIHandler) BooksForm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("id") == "new" {
		api.CreateBook(w, r)
		return
	}
	api.NotFound().ServeHTTP(w, r)
}

// BookPage serves the GET requests on `/books/:id/:action`.
func (api *APIHandler) BookPage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := ParseBookID(ps.ByName("id"))
	if !ok {
		api.NotFound().ServeHTTP(w, r)
		return
	}

	switch ps.ByName("action") {
	case "edit":
		api.EditBookForm(w, r, id)
	case "delete":
		api.ConfirmDeleteBook(w, r, id)
	default:
		api.NotFound().ServeHTTP(w, r)
	}
}

// BookForm serves the POST requests on `/books/:id/:action`.
func (api *APIHandler) BookForm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := ParseBookID(ps.ByName("id"))
	if !ok {
		api.NotFound().ServeHTTP(w, r)
		return
	}

	switch ps.ByName("action") {
	case "edit":
		api.UpdateBook(w, r, id)
	case "delete":
		api.DeleteBook(w, r, id)
	default:
		api.NotFound().ServeHTTP(w, r)
	}
}

// SearchBooks renders the books matching the `q` query parameter.
func (api *APIHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	books, err := api.bookService.Search(r.Context(), q)
	if err != nil {
		api.internalError(w, r, "failed to search books", err)
		return
	}
	api.render(w, r, PageList, PageData{Title: "Search", Books: books, Query: q, Searching: true})
}

func (api *APIHandler) NewBookForm(w http.ResponseWriter, r *http.Request) {
	api.render(w, r, PageForm, PageData{Title: "Add a book", FormAction: "/books/new"})
}

func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	input, err := bookInputFromRequest(r)
	if err != nil {
		api.formError(w, r, "/books/new", err)
		return
	}

	book, err := api.bookService.Create(r.Context(), input)
	if err != nil {
		api.formError(w, r, "/books/new", err)
		return
	}

	api.logger.Info("book created", zap.String("request.id", requestID), zap.Int64("book.id", book.ID))
	api.redirectWithFlash(w, r, "/books", FlashSuccess, MsgBookAdded)
}

func (api *APIHandler) EditBookForm(w http.ResponseWriter, r *http.Request, id int64) {
	book, err := api.bookService.GetOne(r.Context(), id)
	if err != nil {
		api.formError(w, r, "/books", err)
		return
	}
	api.render(w, r, PageForm, PageData{
		Title:      "Edit a book",
		Book:       book,
		Editing:    true,
		FormAction: bookPath(id, "edit"),
	})
}

func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, id int64) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	input, err := bookInputFromRequest(r)
	if err != nil {
		api.formError(w, r, bookPath(id, "edit"), err)
		return
	}

	if _, err = api.bookService.Update(r.Context(), id, input); err != nil {
		api.formError(w, r, bookPath(id, "edit"), err)
		return
	}

	api.logger.Info("book updated", zap.String("request.id", requestID), zap.Int64("book.id", id))
	api.redirectWithFlash(w, r, "/books", FlashSuccess, MsgBookUpdated)
}

func (api *APIHandler) ConfirmDeleteBook(w http.ResponseWriter, r *http.Request, id int64) {
	book, err := api.bookService.GetOne(r.Context(), id)
	if err != nil {
		api.formError(w, r, "/books", err)
		return
	}
	api.render(w, r, PageConfirmDelete, PageData{Title: "Delete a book", Book: book})
}

func (api *APIHandler) DeleteBook(w http.ResponseWriter, r *http.Request, id int64) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	if _, err := api.bookService.Delete(r.Context(), id); err != nil {
		api.formError(w, r, "/books", err)
		return
	}

	api.logger.Info("book deleted", zap.String("request.id", requestID), zap.Int64("book.id", id))
	api.redirectWithFlash(w, r, "/books", FlashSuccess, MsgBookDeleted)
}

// formError turns a mutation failure into an error flash and a redirection.
// Unknown books always lead back to the listing.
func (api *APIHandler) formError(w http.ResponseWriter, r *http.Request, back string, err error) {
	var msg string
	switch {
	case errors.Is(err, ErrBookNotFound):
		msg, back = MsgBookNotFound, "/books"
	case errors.Is(err, ErrMissingRequiredField):
		msg = MsgRequiredFields
	case errors.Is(err, ErrInvalidYear):
		msg = MsgInvalidYear
	default:
		api.logger.Error("failed to process book request",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.String("request.path", r.URL.Path),
			zap.Error(err),
		)
		msg = MsgUnexpectedError
	}
	api.redirectWithFlash(w, r, back, FlashError, msg)
}

func (api *APIHandler) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, category, msg string) {
	if err := api.views.AddFlash(w, r, category, msg); err != nil {
		api.logger.Error("failed to save flash message",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.Error(err),
		)
	}
	code := http.StatusSeeOther
	if r.Method == http.MethodGet {
		code = http.StatusFound
	}
	http.Redirect(w, r, to, code)
}

func (api *APIHandler) render(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	if err := api.views.Render(w, r, page, data); err != nil {
		api.internalError(w, r, "failed to render page "+page, err)
	}
}

func (api *APIHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	api.logger.Error(msg,
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
		zap.Error(err),
	)
	http.Error(w, "failed to process the request.", http.StatusInternalServerError)
}

func bookInputFromRequest(r *http.Request) (BookInput, error) {
	if err := r.ParseForm(); err != nil {
		return BookInput{}, fmt.Errorf("invalid form: %w", err)
	}
	return BookInput{
		Title:  r.PostForm.Get("title"),
		Author: r.PostForm.Get("author"),
		Year:   r.PostForm.Get("year"),
		Genre:  r.PostForm.Get("genre"),
	}, nil
}

func bookPath(id int64, action string) string {
	return fmt.Sprintf("/books/%d/%s", id, action)
}
