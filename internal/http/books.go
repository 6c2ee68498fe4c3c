package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/spinestock/internal/audit"
	"github.com/mrlokans/spinestock/internal/auth"
	"github.com/mrlokans/spinestock/internal/collection"
	"github.com/mrlokans/spinestock/internal/entities"
	"github.com/mrlokans/spinestock/internal/tasks"
)

// BooksController serves /api/users/:uid/books. Routes are mounted behind
// auth.Middleware.RequireOwner, so the authenticated user is the owner.
type BooksController struct {
	store collection.Store
	queue TaskQueue
	audit *audit.Service
}

func NewBooksController(store collection.Store, queue TaskQueue, auditLog *audit.Service) *BooksController {
	return &BooksController{store: store, queue: queue, audit: auditLog}
}

func (bc *BooksController) List(c *gin.Context) {
	books, err := bc.store.List(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, collection.ListResponse{Books: books})
}

func (bc *BooksController) Create(c *gin.Context) {
	var book entities.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	userID := auth.GetUserID(c)
	created, err := bc.store.Create(c.Request.Context(), userID, book)
	if errors.Is(err, collection.ErrInvalidBook) {
		respondBadRequest(c, "title is required")
		return
	}
	if err != nil {
		bc.audit.LogBook(userID, audit.ActionBookCreate, "", book.Title, err)
		respondInternalError(c, err, "create book")
		return
	}
	bc.audit.LogBook(userID, audit.ActionBookCreate, created.ID, created.Title, nil)

	if bc.queue != nil && created.ISBN != "" {
		task := tasks.EnrichBookTask{UserID: userID, BookID: created.ID}
		if _, err := bc.queue.Enqueue(c.Request.Context(), task); err != nil {
			log.Printf("[TASK] Failed to enqueue enrichment for book %s: %v", created.ID, err)
		}
	}

	c.JSON(http.StatusCreated, created)
}

func (bc *BooksController) Update(c *gin.Context) {
	var book entities.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	book.ID = c.Param("id")

	userID := auth.GetUserID(c)
	updated, err := bc.store.Update(c.Request.Context(), userID, book)
	switch {
	case errors.Is(err, collection.ErrNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, collection.ErrInvalidBook):
		respondBadRequest(c, "invalid book")
	case err != nil:
		bc.audit.LogBook(userID, audit.ActionBookUpdate, book.ID, book.Title, err)
		respondInternalError(c, err, "update book")
	default:
		bc.audit.LogBook(userID, audit.ActionBookUpdate, updated.ID, updated.Title, nil)
		c.JSON(http.StatusOK, updated)
	}
}

// Delete always answers 204 for a missing book.
func (bc *BooksController) Delete(c *gin.Context) {
	userID, id := auth.GetUserID(c), c.Param("id")
	err := bc.store.Delete(c.Request.Context(), userID, id)
	bc.audit.LogBook(userID, audit.ActionBookDelete, id, "", err)
	if err != nil {
		respondInternalError(c, err, "delete book")
		return
	}
	c.Status(http.StatusNoContent)
}
