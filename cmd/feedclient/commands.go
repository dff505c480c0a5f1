package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mercedmeals/feedclient/api"
	"github.com/mercedmeals/feedclient/composer"
	"github.com/mercedmeals/feedclient/config"
	"github.com/mercedmeals/feedclient/session"
)

func newRootCmd() *cobra.Command {
	var (
		envFile string
		a       *app
	)
	root := &cobra.Command{
		Use:           "feedclient",
		Short:         "Client for the social feed backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")

	get := func() *app { return a }
	root.AddCommand(
		newLoginCmd(get),
		newRegisterCmd(get),
		newLogoutCmd(get),
		newFeedCmd(get),
		newPostCmd(get),
	)
	return root
}

func newLoginCmd(get func() *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := get().auth.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newRegisterCmd(get func() *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().auth.Register(cmd.Context(), name, email, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created, you can now log in")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// loginHint replaces a missing session with the instruction to sign in.
func loginHint(err error) error {
	if errors.Is(err, session.ErrUnauthenticated) {
		return fmt.Errorf("not signed in, run feedclient login: %w", err)
	}
	return err
}

func newFeedCmd(get func() *app) *cobra.Command {
	var upvotes, downvotes []string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the feed, optionally toggling votes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page := get().page
			if err := page.Load(cmd.Context()); err != nil {
				return loginHint(err)
			}
			for _, id := range upvotes {
				if _, _, err := page.Upvote(api.ID(id)); err != nil {
					return err
				}
			}
			for _, id := range downvotes {
				if _, _, err := page.Downvote(api.ID(id)); err != nil {
					return err
				}
			}
			return printFeed(cmd.OutOrStdout(), get())
		},
	}
	cmd.Flags().StringArrayVar(&upvotes, "upvote", nil, "toggle the upvote of a post id, repeatable")
	cmd.Flags().StringArrayVar(&downvotes, "downvote", nil, "toggle the downvote of a post id, repeatable")
	return cmd
}

func printFeed(w io.Writer, a *app) error {
	page := a.page
	if p := page.Profile(); p != nil {
		fmt.Fprintf(w, "Signed in as %s <%s>\n\n", p.Name, p.Email)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tUP\tDOWN\tVOTE\tCOMMENTS")
	for _, p := range page.Posts() {
		author := api.UnknownUser.Name
		if p.Author != nil {
			author = p.Author.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%d\n",
			p.ID, p.Title, author, p.Upvotes, p.Downvotes, page.Votes.State(p.ID), p.CommentsCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if tags := page.Tags(); len(tags) > 0 {
		fmt.Fprint(w, "\nTags:")
		for _, t := range tags {
			fmt.Fprintf(w, " #%s", t.Name)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func readPhoto(path string) (*composer.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return &composer.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func newPostCmd(get func() *app) *cobra.Command {
	var title, caption string
	var photos []string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create a post with an optional photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			page := get().page
			if _, err := page.Gate.Resolve(ctx); err != nil {
				return loginHint(err)
			}

			c := page.Composer
			c.Open()
			c.SetTitle(title)
			c.SetCaption(caption)
			for _, path := range photos {
				f, err := readPhoto(path)
				if err != nil {
					return err
				}
				name, err := c.SelectFile(*f)
				if err != nil {
					return err
				}
				if name != f.Name {
					fmt.Fprintf(cmd.ErrOrStderr(), "Renamed %s to %s\n", f.Name, name)
				}
			}

			id, err := c.Submit(ctx)
			var ae *composer.AttachmentError
			if errors.As(err, &ae) {
				return fmt.Errorf("post %s created without its photo: %w", id, err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post %s\n", id)
			return printFeed(cmd.OutOrStdout(), get())
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "post title")
	cmd.Flags().StringVar(&caption, "caption", "", "post caption")
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "photo to attach; the last one given is uploaded")
	return cmd
}
