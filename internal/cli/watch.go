package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/amirbrooks/synapse-tasks/internal/config"
	"github.com/amirbrooks/synapse-tasks/internal/store"
)

const watchObserverID = "cli-watch"

func (a *app) cmdWatch(args []string) int {
	tab := a.cfg.InitialTab
	if len(args) > 0 {
		t, ok := config.ParseTab(args[0])
		if !ok {
			return a.usage("watch [list|board|week]")
		}
		tab = t
		args = args[1:]
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.watch(ctx, tab, args, nil); err != nil {
		fmt.Fprintln(a.errOut, "watch:", err)
		return ExitInternal
	}
	return ExitOK
}

// watch renders tab once and again after every reload of the task file, until ctx
// is done. ready, when set, is closed once the watcher is armed.
func (a *app) watch(ctx context.Context, tab config.Tab, args []string, ready chan<- struct{}) error {
	path := a.st.Path()
	if path == "" {
		return errors.New("no task file to watch")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	observer := store.ObserverFunc(watchObserverID, func(_ context.Context, e cloudevents.Event) error {
		fmt.Fprintf(a.out, "\n-- reloaded %s --\n", e.Time().Local().Format("15:04:05"))
		a.cmdView(tab, args)
		return nil
	})
	if err := a.st.RegisterObserver(observer, store.EventStoreReload); err != nil {
		return err
	}
	defer a.st.UnregisterObserver(observer)

	a.cmdView(tab, args)
	if ready != nil {
		close(ready)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			a.log.WithField("op", ev.Op.String()).Debug("task file changed")
			if err := a.st.Reload(); err != nil {
				a.log.WithError(err).WithField("path", path).Warn("reload failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.WithError(err).Warn("watcher error")
		}
	}
}
