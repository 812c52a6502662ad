package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"taskboard/internal/engine"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.client().Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %s_TOKEN=%s\n", envPrefix, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.client().Register(cmd.Context(), name, email, password)
			if err != nil {
				return fmt.Errorf("register failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %s_TOKEN=%s\n", envPrefix, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newBoardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the boards you are a member of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			boards, err := a.client().ListBoards(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(boards) == 0 {
				fmt.Fprintln(out, "No boards yet.")
				return nil
			}
			for _, b := range boards {
				fmt.Fprintf(out, "%s  %-8s  %s\n", b.ID, b.Code, b.Name)
			}
			return nil
		},
	}
}

func newJoinCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join a board with its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.client().JoinBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %s (%s)\n", b.Name, b.ID)
			return nil
		},
	}
}

func newCreateBoardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new-board NAME",
		Short: "Create a board with the default columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.client().CreateBoard(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s), join code %s\n", b.Name, b.ID, b.Code)
			return nil
		},
	}
}

func newRenameBoardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-board NAME",
		Short: "Rename the selected board (owner only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := a.boardID()
			if err != nil {
				return err
			}
			b, err := a.client().RenameBoard(cmd.Context(), boardID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", b.ID, b.Name)
			return nil
		},
	}
}

func newDeleteBoardCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-board",
		Short: "Delete the selected board with all its tasks (owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := a.boardID()
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("deleting board %s removes all its tasks; pass --yes to confirm", boardID)
			}
			if err := a.client().DeleteBoard(cmd.Context(), boardID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted board %s\n", boardID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the board and keep it up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			e, err := a.openBoard(cmd, func(v engine.View) {
				if !once {
					renderBoard(out, v)
				}
			})
			if err != nil {
				return err
			}
			defer e.Close()

			if once {
				v, err := e.View()
				if err != nil {
					return err
				}
				renderBoard(out, v)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			poller := engine.NewPoller(e, pollInterval(a.v), a.logger)
			poller.Start()
			defer poller.Stop()

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the board once and exit")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move TASK COLUMN[-active|-done]",
		Short: "Move a task to another column or position",
		Example: `  boardctl move 3f2c... specification-done
  boardctl move 3f2c... test --index 0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openBoard(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := e.View()
			if err != nil {
				return err
			}
			to := engine.Position{Location: resolveLocation(v.Projection, parseLocation(args[1])), Index: index}
			if index < 0 {
				to.Index = endOf(v.Projection, to.Location)
			}

			ticket, err := e.Move(cmd.Context(), engine.Move{TaskID: args[0], To: to})
			if reason, ok := engine.IsRejection(err); ok {
				return fmt.Errorf("move refused: %s", describeReason(reason))
			}
			if err != nil {
				return err
			}
			if err := ticket.Wait(cmd.Context()); err != nil {
				if reason, ok := engine.IsRejection(err); ok {
					return fmt.Errorf("move refused by server: %s", describeReason(reason))
				}
				return fmt.Errorf("move rolled back: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], ticket.Plan.NewStatus)
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", -1, "position in the destination list (default: end)")
	return cmd
}

func newLimitCmd(a *app) *cobra.Command {
	var rule string
	cmd := &cobra.Command{
		Use:   "limit COLUMN N|none",
		Short: "Set or clear a column's WIP limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var settings engine.ColumnSettings
			if args[1] != "none" {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("limit must be a number or 'none'")
				}
				settings.WipLimit = &n
			}
			if cmd.Flags().Changed("rule") {
				settings.DoneRule = &rule
			}

			e, err := a.openBoard(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			if !cmd.Flags().Changed("rule") {
				// keep the current rule; the server replaces both settings
				if b, ok := mustBucket(e, args[0]); ok {
					settings.DoneRule = b.Column.DoneRule
				}
			}

			ticket, err := e.UpdateColumn(cmd.Context(), args[0], settings)
			if err != nil {
				return err
			}
			if err := ticket.Wait(cmd.Context()); err != nil {
				return fmt.Errorf("column update rolled back: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&rule, "rule", "", "definition of done for the column (empty clears it)")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a task to the backlog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openBoard(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			var c *string
			if color != "" {
				c = &color
			}
			task, err := e.CreateTask(cmd.Context(), strings.Join(args, " "), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "color tag")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm TASK",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openBoard(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			ticket, err := e.DeleteTask(cmd.Context(), args[0])
			if errors.Is(err, engine.ErrTaskNotFound) {
				return fmt.Errorf("no task %s on this board", args[0])
			}
			if err != nil {
				return err
			}
			if err := ticket.Wait(cmd.Context()); err != nil {
				return fmt.Errorf("delete rolled back: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func mustBucket(e *engine.Engine, columnID string) (*engine.Bucket, bool) {
	v, err := e.View()
	if err != nil {
		return nil, false
	}
	return v.Projection.Bucket(columnID)
}

func describeReason(r engine.Reason) string {
	switch r {
	case engine.ReasonWipLimitReached:
		return "the destination column is at its WIP limit"
	case engine.ReasonUnknownColumn:
		return "no such column"
	case engine.ReasonInvalidSubsection:
		return "that column has no such subsection"
	case engine.ReasonTaskNotFound:
		return "no such task on this board"
	}
	return string(r)
}
