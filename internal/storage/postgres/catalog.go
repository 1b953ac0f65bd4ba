package postgres

import (
	"context"
	"fmt"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/paging"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

var bookColumns = []interface{}{"id", "title", "author", "category", "blocked", "created_at"}

func (s *Store) InsertBook(ctx context.Context, book *catalog.Book) (err error) {
	ctx, span := s.start(ctx, "insert_book", attribute.String("book.id", book.ID.String()))
	defer func() { record(span, err); span.End() }()

	_, err = exec(ctx, s.db, dialect.Insert(tableBooks).Prepared(true).Rows(goqu.Record{
		"id":         book.ID,
		"title":      book.Title,
		"author":     book.Author,
		"category":   book.Category,
		"blocked":    book.Blocked,
		"created_at": book.CreatedAt,
	}))
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (_ *catalog.Book, err error) {
	ctx, span := s.start(ctx, "get_book", attribute.String("book.id", id.String()))
	defer func() { record(span, err); span.End() }()

	var book catalog.Book
	err = get(ctx, s.db, &book, dialect.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)))
	if isNoRows(err) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	if book.ReservationIDs, err = reservationIDs(ctx, s.db, goqu.C("book_id").Eq(id)); err != nil {
		return nil, err
	}
	return &book, nil
}

func (s *Store) ListBooks(ctx context.Context, page paging.Page) (paging.Slice[catalog.Book], error) {
	return s.pageBooks(ctx, "list_books", page, nil)
}

func (s *Store) BooksAddedSince(ctx context.Context, cutoff time.Time, page paging.Page) (paging.Slice[catalog.Book], error) {
	return s.pageBooks(ctx, "books_added_since", page, goqu.C("created_at").Gte(cutoff))
}

func (s *Store) pageBooks(ctx context.Context, op string, page paging.Page, where goqu.Expression) (_ paging.Slice[catalog.Book], err error) {
	ctx, span := s.start(ctx, op,
		attribute.Int("page.number", page.Number),
		attribute.Int("page.size", page.Size),
	)
	defer func() { record(span, err); span.End() }()

	q := dialect.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Limit(uint(page.Size + 1)).
		Offset(uint(page.Offset()))
	if where != nil {
		q = q.Where(where)
	}

	var rows []catalog.Book
	if err = selectAll(ctx, s.db, &rows, q); err != nil {
		return paging.Slice[catalog.Book]{}, fmt.Errorf("%s: %w", op, err)
	}
	return paging.SliceOf(rows, page.Size), nil
}

func (s *Store) BlockBook(ctx context.Context, id uuid.UUID) (_ bool, err error) {
	ctx, span := s.start(ctx, "block_book", attribute.String("book.id", id.String()))
	defer func() { record(span, err); span.End() }()

	n, err := exec(ctx, s.db, dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{"blocked": true}).
		Where(goqu.Ex{"id": id, "blocked": false}))
	if err != nil {
		return false, fmt.Errorf("block book: %w", err)
	}
	return n > 0, nil
}

func reservationIDs(ctx context.Context, q sqlx.QueryerContext, where goqu.Expression) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := selectAll(ctx, q, &ids, dialect.From(tableRentals).Prepared(true).
		Select("id").
		Where(where).
		Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("load reservation ids: %w", err)
	}
	return ids, nil
}
