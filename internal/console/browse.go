package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/internal/metrics"
	"github.com/me/mdconsole/pkg/model"
	"github.com/spf13/cobra"
)

const browseHelp = `Type text to search (applied after a short pause, Enter on an empty line applies it now).

List commands:
  :n / :p        next / previous page
  :size N        rows per page
  :clear         clear the search
  :refresh       reload the current page
  :new           open the create form
  :edit ID       edit a row on this page
  :resume        reopen the last selection made with :edit or 'select'
  :del ID        delete a row on this page, then :yes or :no
  :q             quit

Form commands:
  field=value    change a field
  :show          show the draft
  :save          save (an edit then asks for a reason for change, :cancel to go back)
  :back          return to the list without saving`

func (c *entityCmd[T]) browseCmd() *cobra.Command {
	var search, metricsAddr string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: fmt.Sprintf("Browse %s records interactively", strings.ToLower(c.entity.Title)),
		Long:  browseHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var observer listflow.FetchObserver
			if metricsAddr != "" {
				m := metrics.New(false)
				ln, err := net.Listen("tcp", metricsAddr)
				if err != nil {
					return fmt.Errorf("metrics listener: %w", err)
				}
				srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go srv.Serve(ln)
				defer srv.Shutdown(context.Background())
				c.a.logger.Info("serving fetch metrics", "addr", ln.Addr().String())
				observer = m
			}

			store, err := c.a.openHandoffs(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			b := newBrowser(c, cmd.OutOrStdout(), store, observer, strings.TrimSpace(search))
			return b.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Initial search text")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve fetch metrics for this session on addr (e.g. 127.0.0.1:9102)")
	return cmd
}

// syncWriter serialises writes from the input loop and fetch goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// browser is the interactive list screen of one entity. Forms opened from
// it replace the list until they navigate back.
type browser[T model.Record] struct {
	c        *entityCmd[T]
	out      io.Writer
	n        *notifier
	screen   *listflow.Screen[T]
	handoffs listflow.HandoffStore
	nav      chan string
	formOpen atomic.Bool
	create   *listflow.CreateForm[T]
	edit     *listflow.EditForm[T]
}

func newBrowser[T model.Record](c *entityCmd[T], out io.Writer, handoffs listflow.HandoffStore, observer listflow.FetchObserver, search string) *browser[T] {
	w := &syncWriter{w: out}
	b := &browser[T]{
		c:        c,
		out:      w,
		n:        newNotifier(w),
		handoffs: handoffs,
		nav:      make(chan string, 8),
	}
	res := c.resource()
	b.screen = listflow.NewScreen(listflow.ScreenConfig[T]{
		Entity:   c.entity,
		Fetch:    res.Fetch,
		Delete:   res.Delete,
		Notifier: b.n,
		Identity: c.a.identity(),
		Logger:   c.a.logger,
		Observer: observer,
		Query:    model.Query{Search: search, PageSize: c.a.profile.PageSize},
		Debounce: c.a.profile.Debounce,
	})
	b.screen.List.OnChange(b.render)
	return b
}

// Navigate queues a screen change for the input loop. Forms call it from
// their navigation timers.
func (b *browser[T]) Navigate(path string, _ any) {
	select {
	case b.nav <- path:
	default:
		b.c.a.logger.Warn("navigation dropped", "path", path)
	}
}

func (b *browser[T]) run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	fmt.Fprintf(b.out, "%s records. Type to search, :help for commands.\n", b.c.entity.Title)
	b.screen.Start(ctx)
	defer b.close()

	for {
		// Commands act on a settled page, after any queued screen change.
		b.screen.List.Wait()
		select {
		case path := <-b.nav:
			b.navigate(ctx, path)
			continue
		default:
		}
		fmt.Fprint(b.out, b.promptText())
		select {
		case <-ctx.Done():
			return nil
		case path := <-b.nav:
			fmt.Fprintln(b.out)
			b.navigate(ctx, path)
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(b.out)
				return nil
			}
			if b.handle(ctx, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

func (b *browser[T]) close() {
	b.closeForms()
	b.screen.Close()
	b.screen.List.Wait()
}

func (b *browser[T]) closeForms() {
	if b.create != nil {
		b.create.Close()
		b.create = nil
	}
	if b.edit != nil {
		b.edit.Close()
		b.edit = nil
	}
	b.formOpen.Store(false)
}

func (b *browser[T]) promptText() string {
	name := strings.ToLower(b.c.entity.Title)
	switch {
	case b.edit != nil && b.edit.State() == model.FormReasonPending:
		return "reason for change> "
	case b.edit != nil:
		return fmt.Sprintf("edit %s %d> ", name, b.edit.Original().RecordID())
	case b.create != nil:
		return fmt.Sprintf("new %s> ", name)
	}
	return kebab(b.c.entity.Plural) + "> "
}

func (b *browser[T]) render(s listflow.ListState[T]) {
	if s.Loading || b.formOpen.Load() {
		return
	}
	var buf bytes.Buffer
	buf.WriteString("\n")
	if s.Query.Search != "" {
		fmt.Fprintf(&buf, "Search: %q\n", s.Query.Search)
	}
	renderPage(&buf, b.c.entity, s.Items, s.Query, s.TotalCount)
	b.out.Write(buf.Bytes())
}

// handle runs one input line and reports whether to quit.
func (b *browser[T]) handle(ctx context.Context, line string) bool {
	if line == ":q" || line == ":quit" {
		return true
	}
	if line == ":help" {
		fmt.Fprintln(b.out, browseHelp)
		return false
	}
	switch {
	case b.edit != nil && b.edit.State() == model.FormReasonPending:
		if line == ":cancel" {
			b.edit.CancelReason()
			b.info("Save cancelled.")
			return false
		}
		err := b.edit.ConfirmReason(ctx, line)
		b.report(err, b.edit.FieldErrors())
	case b.edit != nil || b.create != nil:
		b.handleForm(ctx, line)
	default:
		b.handleList(ctx, line)
	}
	return false
}

func (b *browser[T]) handleList(ctx context.Context, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	q := b.screen.Query
	switch cmd {
	case "":
		q.Flush()
	case ":n":
		st := b.screen.List.State()
		if st.Query.Page+1 >= st.TotalPages() {
			b.info("Already on the last page.")
			return
		}
		q.SetPage(st.Query.Page + 1)
	case ":p":
		st := b.screen.List.State()
		if st.Query.Page == 0 {
			b.info("Already on the first page.")
			return
		}
		q.SetPage(st.Query.Page - 1)
	case ":size":
		n, err := strconv.Atoi(arg)
		if err == nil {
			err = q.SetPageSize(n)
		}
		if err != nil {
			b.n.Notify(model.LevelError, fmt.Sprintf("Invalid page size %q.", arg))
		}
	case ":clear":
		q.SetSearchText("")
		q.Flush()
	case ":refresh":
		b.screen.List.Refresh()
	case ":new":
		b.Navigate(b.c.createRoute(), nil)
	case ":resume":
		b.Navigate(b.c.editRoute(), nil)
	case ":edit":
		rec, ok := b.row(arg)
		if !ok {
			return
		}
		err := listflow.Select(ctx, b.handoffs, b, workflowKey(b.c.entity), b.c.editRoute(), b.c.entity, rec, time.Now())
		if err != nil {
			b.c.a.logger.Error("select failed", "error", err)
			b.n.Notify(model.LevelError, listflow.GenericFailureText)
		}
	case ":del":
		rec, ok := b.row(arg)
		if !ok {
			return
		}
		if err := b.screen.Delete.Request(rec); err != nil {
			b.n.Notify(model.LevelWarning, err.Error())
			return
		}
		renderRecord(b.out, b.c.entity, rec)
		fmt.Fprintf(b.out, "Delete %s %d? Type :yes to confirm or :no to cancel.\n", b.c.entity.Title, rec.RecordID())
	case ":yes":
		if b.screen.Delete.State() != model.DeleteConfirmPending {
			b.info("Nothing to confirm.")
			return
		}
		b.report(b.screen.Delete.Confirm(ctx), nil)
	case ":no":
		if b.screen.Delete.State() == model.DeleteConfirmPending {
			b.screen.Delete.Cancel()
			b.info("Delete cancelled.")
		}
	default:
		if strings.HasPrefix(line, ":") {
			b.n.Notify(model.LevelWarning, fmt.Sprintf("Unknown command %s. Type :help.", cmd))
			return
		}
		q.SetSearchText(line)
	}
}

func (b *browser[T]) handleForm(ctx context.Context, line string) {
	switch line {
	case ":back":
		b.closeForms()
		b.screen.List.Refresh()
	case ":show":
		renderRecord(b.out, b.c.entity, b.draft())
	case ":save":
		if b.edit != nil {
			err := b.edit.Submit(ctx)
			b.report(err, b.edit.FieldErrors())
			if err == nil && b.edit.State() == model.FormReasonPending {
				fmt.Fprintln(b.out, "Enter the reason for change (:cancel to keep editing).")
			}
			return
		}
		b.report(b.create.Submit(ctx), b.create.FieldErrors())
	default:
		if !strings.Contains(line, "=") {
			b.n.Notify(model.LevelWarning, "Use field=value, :save, :show or :back.")
			return
		}
		d := b.draft()
		if err := applySets(&d, b.c.entity, []string{line}); err != nil {
			b.n.Notify(model.LevelError, err.Error())
			return
		}
		if b.edit != nil {
			b.edit.SetDraft(d)
		} else {
			b.create.SetDraft(d)
		}
	}
}

// navigate switches screens: the edit route opens the stored selection,
// the create route an empty form, the list route closes any form and
// reloads the page.
func (b *browser[T]) navigate(ctx context.Context, path string) {
	cfg := b.c.a.formConfig(b.c.entity, b.n, b)
	cfg.ListRoute = b.c.listRoute()
	res := b.c.resource()
	switch path {
	case b.c.editRoute():
		form, err := listflow.NewEditFormFromHandoff[T](ctx, res.Update, b.handoffs, workflowKey(b.c.entity), cfg)
		if err != nil {
			var ns *listflow.NoSelectionError
			if errors.As(err, &ns) {
				b.info("No record selected. Use :edit ID.")
				return
			}
			b.c.a.logger.Error("open edit form", "error", err)
			b.n.Notify(model.LevelError, listflow.GenericFailureText)
			return
		}
		b.closeForms()
		b.edit = form
		b.formOpen.Store(true)
		fmt.Fprintf(b.out, "Editing %s %d. Enter field=value lines, then :save.\n", b.c.entity.Title, form.Original().RecordID())
		renderRecord(b.out, b.c.entity, form.Draft())
	case b.c.createRoute():
		b.closeForms()
		b.create = listflow.NewCreateForm[T](res.Create, cfg)
		b.formOpen.Store(true)
		fmt.Fprintf(b.out, "New %s. Enter field=value lines (%s), then :save.\n",
			b.c.entity.Title, strings.Join(fieldNames[T](b.c.entity), ", "))
	case b.c.listRoute():
		b.closeForms()
		b.screen.List.Refresh()
	default:
		b.c.a.logger.Warn("unknown route", "path", path)
	}
}

func (b *browser[T]) draft() T {
	if b.edit != nil {
		return b.edit.Draft()
	}
	return b.create.Draft()
}

// row finds the record with the given id on the current page.
func (b *browser[T]) row(arg string) (T, bool) {
	var zero T
	id, err := parseID(arg)
	if err != nil {
		b.n.Notify(model.LevelWarning, err.Error())
		return zero, false
	}
	for _, it := range b.screen.List.State().Items {
		if it.RecordID() == id {
			return it, true
		}
	}
	b.n.Notify(model.LevelWarning, fmt.Sprintf("%s %d is not on this page.", b.c.entity.Title, id))
	return zero, false
}

func (b *browser[T]) info(text string) {
	b.n.Notify(model.LevelInformation, text)
}

// report surfaces errors the flows leave to the caller: inline field cues
// and out-of-order commands. Everything else was already notified.
func (b *browser[T]) report(err error, fields []model.FieldError) {
	if err == nil {
		return
	}
	var ite *model.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		b.n.Notify(model.LevelWarning, "Not now: "+err.Error())
	case len(fields) > 0:
		fmt.Fprintln(b.out, "Please fix the following fields:")
		printFieldErrors(b.out, fields)
	default:
		b.c.a.logger.Debug("command failed", "error", err)
	}
}
