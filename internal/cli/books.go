package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/entities"
	"github.com/mrlokans/spinestock/internal/metadata"
)

var errBookNotFound = errors.New("no book with that ID in your library")

func newBooksCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage your library",
	}
	cmd.AddCommand(
		newBooksListCommand(cfg, creds),
		newBooksAddCommand(cfg, creds),
		newBooksShowCommand(cfg, creds),
		newBooksUpdateCommand(cfg, creds),
		newBooksDeleteCommand(cfg, creds),
	)
	return cmd
}

// withSession runs fn inside a signed-in session bounded by the command
// context.
func withSession(cmd *cobra.Command, cfg *config.Config, creds *credentials, fn func(context.Context, *session) error) error {
	ctx, cancel := commandContext(cmd, cfg)
	defer cancel()

	s, err := signedIn(ctx, cmd, cfg, creds)
	if err != nil {
		return err
	}
	defer s.close(ctx)
	return fn(ctx, s)
}

func newBooksListCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the books in your library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, creds, func(ctx context.Context, s *session) error {
				books := s.store.Snapshot().Library.Books
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Your library is empty.")
					return nil
				}
				return printBooks(cmd.OutOrStdout(), books)
			})
		},
	}
}

func newBooksAddCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	var isbn, title, author string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Look a book up in the catalog and add it",
		Example: `  spinestock books add --isbn 9780140328721
  spinestock books add --title "Matilda" --author "Dahl"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, creds, func(ctx context.Context, s *session) error {
				draft := s.store.NewDraft()
				defer draft.Close()
				stop := context.AfterFunc(ctx, draft.Close)
				defer stop()

				var (
					book *entities.Book
					err  error
				)
				if isbn != "" {
					book, err = draft.SubmitISBN(ctx, isbn)
				} else {
					book, err = draft.SubmitTitle(ctx, title, author)
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Added %q by %s (%s)\n", book.Title, displayAuthor(book.Author), book.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN-10 or ISBN-13")
	cmd.Flags().StringVar(&title, "title", "", "title to search for")
	cmd.Flags().StringVar(&author, "author", "", "narrow a title search by author")
	cmd.MarkFlagsMutuallyExclusive("isbn", "title")
	cmd.MarkFlagsMutuallyExclusive("isbn", "author")
	cmd.MarkFlagsOneRequired("isbn", "title")
	return cmd
}

func newBooksShowCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a book's details, filling gaps from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, creds, func(ctx context.Context, s *session) error {
				book, ok := s.store.Snapshot().Library.Find(args[0])
				if !ok {
					return errBookNotFound
				}

				res, err := s.store.OpenDetails(ctx, book)
				printDetails(cmd.OutOrStdout(), res.Details)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: details could not be saved: %v\n", err)
				}
				return nil
			})
		},
	}
}

func newBooksUpdateCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	var title, author string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a book's title or author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, creds, func(ctx context.Context, s *session) error {
				book, ok := s.store.Snapshot().Library.Find(args[0])
				if !ok {
					return errBookNotFound
				}

				if cmd.Flags().Changed("title") {
					book.Title = title
				}
				if cmd.Flags().Changed("author") {
					book.Author = author
				}

				updated, err := s.store.UpdateBook(ctx, book)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %q by %s\n", updated.Title, displayAuthor(updated.Author))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&author, "author", "", "new author")
	cmd.MarkFlagsOneRequired("title", "author")
	return cmd
}

func newBooksDeleteCommand(cfg *config.Config, creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Remove a book from your library",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, creds, func(ctx context.Context, s *session) error {
				if err := s.store.DeleteBook(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printBooks(w io.Writer, books []entities.Book) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tISBN\tTITLE\tAUTHOR")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.ISBN, b.Title, displayAuthor(b.Author))
	}
	return tw.Flush()
}

func printDetails(w io.Writer, d metadata.Details) {
	fmt.Fprintf(w, "Title:        %s\n", d.Title)
	fmt.Fprintf(w, "Author:       %s\n", d.Author)
	fmt.Fprintf(w, "Published:    %s\n", d.PublishDate)
	fmt.Fprintf(w, "Pages:        %s\n", d.PageCount)
	fmt.Fprintf(w, "\n%s\n", d.Description)
}

func displayAuthor(author string) string {
	if author == "" {
		return entities.UnknownAuthor
	}
	return author
}
