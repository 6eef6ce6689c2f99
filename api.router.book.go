package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupBookRoutes injects the catalog pages endpoints. The `/books/new` and
// `/books/search` pages share the `/books/:id` route and are dispatched by
// the handler.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.GET("/", m.public(api.Index))
	router.GET("/status", m.public(api.Status))
	router.GET("/books", m.public(api.ListBooks))
	router.GET("/books/:id", m.public(api.BooksPage))
	router.POST("/books/:id", m.public(api.BooksForm))
	router.GET("/books/:id/:action", m.public(api.BookPage))
	router.POST("/books/:id/:action", m.public(api.BookForm))
	return router
}
