package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookshelf/internal/auth"
	"bookshelf/internal/book"
	"bookshelf/internal/library"
	"bookshelf/internal/platform/validate"
	"bookshelf/internal/tui"
	"bookshelf/internal/user"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type addInput struct {
	Title  string `validate:"notblank"`
	Author string
	Pages  string
}

type registerInput struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=50"`
	Password string `validate:"required,password_strength"`
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "shelf",
		Short:         "Keep track of the books you own and have read",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}
	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newToggleCmd(a),
		newRemoveCmd(a),
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		&cobra.Command{
			Use:   "tui",
			Short: "Open the interactive library",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTUI(cmd, a)
			},
		},
	)
	return root
}

func newAddCmd(a *app) *cobra.Command {
	var in addInput
	var isRead bool
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a book to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = strings.TrimSpace(strings.Join(args, " "))
			if errs := validate.Struct(in); errs != nil {
				return errors.New(validate.First(errs))
			}

			session, done, err := a.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			b := book.New(in.Title, in.Author, in.Pages, isRead)
			if err := session.AddBook(cmd.Context(), b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q\n", b.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Author, "author", book.DefaultAuthor, "book author")
	cmd.Flags().StringVar(&in.Pages, "pages", book.DefaultPages, "number of pages")
	cmd.Flags().BoolVar(&isRead, "read", false, "mark the book as read")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, done, err := a.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			books := session.Books()
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no books yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(books))
			return nil
		},
	}
}

func renderTable(books []book.Book) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TITLE", "AUTHOR", "PAGES", "READ")
	for _, b := range books {
		read := "no"
		if b.IsRead {
			read = "yes"
		}
		t.Row(b.Title, b.Author, b.Pages, read)
	}
	return t.Render()
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <title>",
		Short: "Flip the read status of a book",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			session, done, err := a.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			b, found := session.Find(title)
			if err := session.ToggleRead(cmd.Context(), title); err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "no book titled %q\n", title)
				return nil
			}
			state := "read"
			if b.IsRead {
				state = "not read"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %q as %s\n", title, state)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <title>",
		Aliases: []string{"remove"},
		Short:   "Remove a book from the library",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			session, done, err := a.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			if err := session.RemoveBook(cmd.Context(), title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", title)
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var in registerInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := validate.Struct(in); errs != nil {
				return errors.New(validate.First(errs))
			}
			remote, err := a.openRemote(cmd.Context())
			if err != nil {
				return err
			}
			u, err := remote.users.Register(cmd.Context(), in.Email, in.Username, in.Password)
			if err != nil {
				if errors.Is(err, user.ErrAlreadyExists) {
					return errors.New("an account with this email already exists")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s; run `shelf login` to sign in\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Username, "username", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and use the remote library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := a.openRemote(cmd.Context())
			if err != nil {
				return err
			}
			tok, err := remote.auth.Login(cmd.Context(), email, password)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					return errors.New("invalid email or password")
				}
				return err
			}
			err = saveCredentials(a.cfg.DataDir, credentials{
				Token:     tok.AccessToken,
				UserID:    tok.UserID,
				Email:     strings.ToLower(strings.TrimSpace(email)),
				ExpiresAt: tok.ExpiresAt,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and go back to the local library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loggedIn, err := a.forgetLogin(cmd.Context())
			if err != nil {
				return err
			}
			if !loggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, loggedIn, err := loadCredentials(a.cfg.DataDir)
			if err != nil {
				return err
			}
			if !loggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in; using the local library")
				return nil
			}
			remote, err := a.openRemote(cmd.Context())
			if err != nil {
				return err
			}
			userID, err := remote.auth.Identify(cmd.Context(), creds.Token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					fmt.Fprintln(cmd.OutOrStdout(), "saved login has expired; run `shelf login` again")
					return nil
				}
				return err
			}
			u, err := remote.users.GetByID(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s <%s>\n", u.Username, u.Email)
			return nil
		},
	}
}

func runTUI(cmd *cobra.Command, a *app) error {
	bridge := &tui.Bridge{}
	session, done, err := a.openSession(cmd.Context(), bridge.OnChange)
	if err != nil {
		return err
	}
	defer done()

	a.logger.Info("tui started", zap.Stringer("mode", session.Mode()))
	return tui.Run(cmd.Context(), accountLibrary{Session: session, app: a}, bridge)
}

// accountLibrary makes signing out of the TUI also forget the saved login, so
// the next start stays on the local library.
type accountLibrary struct {
	*library.Session
	app *app
}

func (l accountLibrary) SignOut(ctx context.Context) error {
	if _, err := l.app.forgetLogin(ctx); err != nil {
		return err
	}
	return l.Session.SignOut(ctx)
}

// userMessage turns err into the line printed before exiting.
func userMessage(err error) string {
	if errors.Is(err, library.ErrDuplicateTitle) {
		return "This book already exists in your library"
	}
	return err.Error()
}
