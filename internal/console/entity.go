package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/me/mdconsole/internal/client"
	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/pkg/model"
	"github.com/spf13/cobra"
)

// entityCmd builds the command group of one master-data entity.
type entityCmd[T model.Record] struct {
	a      *app
	entity model.Entity
}

func newEntityCmd[T model.Record](a *app, e model.Entity, aliases ...string) *cobra.Command {
	ec := &entityCmd[T]{a: a, entity: e}
	use := kebab(e.Plural)
	if use != e.Plural {
		aliases = append([]string{e.Plural}, aliases...)
	}
	cmd := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   fmt.Sprintf("Manage %s records", strings.ToLower(e.Title)),
	}
	cmd.AddCommand(
		ec.listCmd(),
		ec.getCmd(),
		ec.createCmd(),
		ec.updateCmd(),
		ec.deleteCmd(),
		ec.selectCmd(),
		ec.editCmd(),
		ec.browseCmd(),
	)
	return cmd
}

func (c *entityCmd[T]) resource() *client.Resource[T] {
	return client.NewResource[T](c.a.client, c.entity)
}

func (c *entityCmd[T]) name() string {
	return kebab(c.entity.Plural)
}

func (c *entityCmd[T]) listRoute() string   { return "/" + c.entity.Plural }
func (c *entityCmd[T]) editRoute() string   { return "/" + c.entity.Plural + "/edit" }
func (c *entityCmd[T]) createRoute() string { return "/" + c.entity.Plural + "/new" }

func (c *entityCmd[T]) listCmd() *cobra.Command {
	var page, size int
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s records", strings.ToLower(c.entity.Title)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size == 0 {
				size = c.a.profile.PageSize
			}
			var problems []model.FieldError
			if page < 1 {
				problems = append(problems, model.FieldError{Field: "page", Message: "must be >= 1"})
			}
			if size < 1 || size > model.MaxPageSize {
				problems = append(problems, model.FieldError{Field: "size", Message: fmt.Sprintf("must be between 1 and %d", model.MaxPageSize)})
			}
			if err := model.NewValidationError(problems...); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			n := newNotifier(out)
			screen := listflow.NewScreen(listflow.ScreenConfig[T]{
				Entity:   c.entity,
				Fetch:    c.resource().Fetch,
				Notifier: n,
				Logger:   c.a.logger,
				Query:    model.Query{Search: strings.TrimSpace(search), Page: page - 1, PageSize: size},
			})
			defer screen.Close()

			screen.Start(cmd.Context())
			screen.List.Wait()
			if n.Errors() > 0 {
				return fmt.Errorf("list %s failed", c.entity.Plural)
			}
			st := screen.List.State()
			renderPage(out, c.entity, st.Items, st.Query, st.TotalCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&size, "size", 0, "Rows per page (defaults to the profile page size)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search text")
	return cmd
}

func (c *entityCmd[T]) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: fmt.Sprintf("Show one %s", strings.ToLower(c.entity.Title)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rec, err := c.load(cmd.Context(), newNotifier(out), id)
			if err != nil {
				return err
			}
			renderRecord(out, c.entity, rec)
			return nil
		},
	}
}

func (c *entityCmd[T]) createCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s", strings.ToLower(c.entity.Title)),
		Example: fmt.Sprintf("  mdconsole %s create --set %s",
			c.name(), strings.Join(fieldNames[T](c.entity), "=... --set ")+"=..."),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			n := newNotifier(out)
			form := listflow.NewCreateForm[T](c.resource().Create, c.a.formConfig(c.entity, n, nil))
			defer form.Close()

			var draft T
			if err := applySets(&draft, c.entity, sets); err != nil {
				return err
			}
			form.SetDraft(draft)
			if err := form.Submit(cmd.Context()); err != nil {
				reportFieldErrors(out, form.FieldErrors())
				return err
			}
			renderRecord(out, c.entity, form.Draft())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field assignment field=value (repeatable)")
	return cmd
}

func (c *entityCmd[T]) updateCmd() *cobra.Command {
	var sets []string
	var reason string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: fmt.Sprintf("Change a %s; a reason for change is required", strings.ToLower(c.entity.Title)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n := newNotifier(cmd.OutOrStdout())
			orig, err := c.load(cmd.Context(), n, id)
			if err != nil {
				return err
			}
			form := listflow.NewEditForm[T](c.resource().Update, orig, c.a.formConfig(c.entity, n, nil))
			defer form.Close()
			return c.runEdit(cmd, form, sets, reason, cmd.Flags().Changed("reason"))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field assignment field=value (repeatable)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for change (prompted when omitted)")
	return cmd
}

func (c *entityCmd[T]) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: fmt.Sprintf("Delete a %s after confirmation", strings.ToLower(c.entity.Title)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			n := newNotifier(out)
			rec, err := c.load(cmd.Context(), n, id)
			if err != nil {
				return err
			}
			flow := listflow.NewDeleteFlow[T](c.entity, c.resource().Delete, nil, n, c.a.identity(), c.a.logger)
			if err := flow.Request(rec); err != nil {
				return err
			}
			if !yes {
				renderRecord(out, c.entity, rec)
				answer := prompt(cmd.InOrStdin(), out, fmt.Sprintf("Delete %s %d? [y/N]: ", c.entity.Title, id))
				if !isYes(answer) {
					flow.Cancel()
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}
			return flow.Confirm(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func (c *entityCmd[T]) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select ID",
		Short: fmt.Sprintf("Select a %s for a later edit", strings.ToLower(c.entity.Title)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			rec, err := c.load(ctx, newNotifier(out), id)
			if err != nil {
				return err
			}
			store, err := c.a.openHandoffs(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			nav := listflow.NavigatorFunc(func(path string, _ any) {
				c.a.logger.Debug("navigate", "path", path)
			})
			if err := listflow.Select(ctx, store, nav, workflowKey(c.entity), c.editRoute(), c.entity, rec, time.Now()); err != nil {
				return err
			}
			renderRecord(out, c.entity, rec)
			fmt.Fprintf(out, "Selected %s %d. Run 'mdconsole %s edit --set field=value' to change it.\n", c.entity.Title, id, c.name())
			return nil
		},
	}
}

func (c *entityCmd[T]) editCmd() *cobra.Command {
	var sets []string
	var reason string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: fmt.Sprintf("Edit the selected %s (see select)", strings.ToLower(c.entity.Title)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			store, err := c.a.openHandoffs(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			n := newNotifier(out)
			form, err := listflow.NewEditFormFromHandoff[T](ctx, c.resource().Update, store, workflowKey(c.entity), c.a.formConfig(c.entity, n, nil))
			if err != nil {
				var ns *listflow.NoSelectionError
				if errors.As(err, &ns) {
					return fmt.Errorf("%w; run 'mdconsole %s select ID' first", err, c.name())
				}
				return err
			}
			defer form.Close()
			if len(sets) == 0 {
				renderRecord(out, c.entity, form.Original())
				return nil
			}
			return c.runEdit(cmd, form, sets, reason, cmd.Flags().Changed("reason"))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field assignment field=value (repeatable); without it the selection is shown")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for change (prompted when omitted)")
	return cmd
}

// runEdit applies sets to the form draft and, when something changed,
// saves it with the given or prompted reason.
func (c *entityCmd[T]) runEdit(cmd *cobra.Command, form *listflow.EditForm[T], sets []string, reason string, haveReason bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	draft := form.Draft()
	if err := applySets(&draft, c.entity, sets); err != nil {
		return err
	}
	form.SetDraft(draft)
	if err := form.Submit(ctx); err != nil {
		reportFieldErrors(out, form.FieldErrors())
		return err
	}
	if form.State() != model.FormReasonPending {
		return nil
	}
	if !haveReason {
		reason = prompt(cmd.InOrStdin(), out, "Reason for change: ")
	}
	if err := form.ConfirmReason(ctx, reason); err != nil {
		return err
	}
	renderRecord(out, c.entity, form.Draft())
	return nil
}

// load fetches one record, surfacing a business error through n.
func (c *entityCmd[T]) load(ctx context.Context, n listflow.Notifier, id int64) (T, error) {
	var zero T
	res, err := c.resource().Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if !res.Header.OK() {
		listflow.DispatchHeader(n, res.Header)
		return zero, &model.BusinessError{Header: res.Header}
	}
	if res.Record == nil {
		return zero, fmt.Errorf("get %s %d: %w", c.entity.Name, id, model.ErrContract)
	}
	return *res.Record, nil
}

func reportFieldErrors(w io.Writer, errs []model.FieldError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(w, "Please fix the following fields:")
	printFieldErrors(w, errs)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

// prompt prints label and reads one line from in.
func prompt(in io.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

// workflowKey names the handoff slot of an entity, e.g. "plant-assignment".
func workflowKey(e model.Entity) string {
	return kebab(e.Name)
}

func kebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
