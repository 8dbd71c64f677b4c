package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
	"github.com/amirbrooks/synapse-tasks/internal/config"
	"github.com/amirbrooks/synapse-tasks/internal/graph"
	"github.com/amirbrooks/synapse-tasks/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

var timeNow = time.Now

type GlobalFlags struct {
	Root      string
	File      string
	Format    string
	JSON      bool
	Plain     bool
	ASCII     bool
	Quiet     bool
	Verbose   bool
	NoPersist bool
	ForceSeed bool
}

type app struct {
	gf     GlobalFlags
	cfg    config.Config
	cal    calendar.Calendar
	st     *store.Store
	log    *logrus.Logger
	out    io.Writer
	errOut io.Writer
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") && !isNegativeNumber(a) {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func isNegativeNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr, os.Getenv)
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	gf, rest, err := extractGlobalFlags(args, getenv)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}

	cmd := ""
	var cmdArgs []string
	if len(rest) > 0 {
		cmd = rest[0]
		cmdArgs = rest[1:]
	}
	switch cmd {
	case "help", "--help", "-h":
		printHelp(stdout)
		return ExitOK
	}

	cfg, err := config.LoadWithEnv(gf.Root, getenv)
	if err != nil {
		fmt.Fprintln(stderr, "tasks: config:", err)
		return ExitUsage
	}
	if gf.File != "" {
		cfg.StoreFile = gf.File
	}
	if gf.NoPersist {
		cfg.DisablePersistence = true
	}
	if gf.ForceSeed {
		cfg.ForceSeed = true
	}
	cal, err := cfg.Calendar()
	if err != nil {
		fmt.Fprintln(stderr, "tasks: config:", err)
		return ExitUsage
	}

	a := &app{gf: gf, cfg: cfg, cal: cal, out: stdout, errOut: stderr}
	a.log = newLogger(cfg, gf, stderr)

	if cmd == "config" || cmd == "cfg" {
		return a.cmdConfig(cmdArgs)
	}

	a.st = store.Open(store.Options{
		Path:               cfg.StorePath(),
		DisablePersistence: cfg.DisablePersistence,
		ForceSeed:          cfg.ForceSeed,
		Calendar:           cal,
		Logger:             a.log,
	})
	defer a.st.Close()

	switch cmd {
	case "":
		return a.cmdView(cfg.InitialTab, nil)
	case "ls", "list":
		return a.cmdList(cmdArgs)
	case "add":
		return a.cmdAdd(cmdArgs)
	case "show":
		return a.cmdShow(cmdArgs)
	case "toggle":
		return a.cmdToggle(cmdArgs)
	case "status", "mv":
		return a.cmdStatus(cmdArgs)
	case "done":
		return a.cmdSetStatus(cmdArgs, store.StatusDone, "done")
	case "start":
		return a.cmdSetStatus(cmdArgs, store.StatusDoing, "start")
	case "due":
		return a.cmdDue(cmdArgs)
	case "note":
		return a.cmdNote(cmdArgs)
	case "tag":
		return a.cmdTag(cmdArgs)
	case "priority", "pri":
		return a.cmdPriority(cmdArgs)
	case "category", "cat":
		return a.cmdCategory(cmdArgs)
	case "categories", "cats":
		return a.cmdCategories(cmdArgs)
	case "rm", "remove":
		return a.cmdRemove(cmdArgs)
	case "board":
		return a.cmdView(config.TabBoard, cmdArgs)
	case "week", "weekly":
		return a.cmdView(config.TabWeek, cmdArgs)
	case "link":
		return a.cmdLink(cmdArgs)
	case "unlink":
		return a.cmdUnlink(cmdArgs)
	case "graph":
		return a.cmdGraph(cmdArgs)
	case "watch":
		return a.cmdWatch(cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp(stderr)
		return ExitUsage
	}
}

func newLogger(cfg config.Config, gf GlobalFlags, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	if gf.Verbose {
		level = logrus.DebugLevel
	}
	if gf.Quiet {
		level = logrus.ErrorLevel
	}
	logger.SetLevel(level)
	return logger
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `tasks: personal task list, board and week view

Usage:
  tasks [global flags] [command] [args]

Global flags:
  --root <path>    Data directory (default: ~/.synapse-tasks or TASKS_ROOT)
  --file <name>    Task file inside the root, .json or .yaml (default: tasks.json)
  --json           JSON output
  --plain          TSV output
  --format <f>     text|telegram rendering for list/board/week
  --ascii          ASCII truncation for board output
  --no-persist     Never write the task file (TASKS_DISABLE_PERSISTENCE=1)
  --force-seed     Replace tasks with the demonstration set (TASKS_FORCE_SEED=1)
  --quiet
  --verbose

Commands:
  (none)                         Show the initial view (TASKS_SCREENSHOT_TAB: list|board|week)
  ls [--status <s>] [--category <name>]
  add "<title>" [--due <date>|--today|--tomorrow] [--note <text>] [--tag <t>...]
      [--priority <1-5>] [--category <name>]
  show <id-or-#n>
  toggle <id-or-#n>
  status <id-or-#n> <todo|doing|done>
  done <id-or-#n>
  start <id-or-#n>
  due <id-or-#n> <YYYY-MM-DD|today|tomorrow|none>
  note <id-or-#n> "<text>"
  tag <id-or-#n> <tag>...
  priority <id-or-#n> <1-5|none>   1 is the highest
  category <id-or-#n> <name|none>  Creates the category when missing
  categories [add <name> | rm <name-or-id>]
  rm <id-or-#n>...
  board
  week [--day <weekday|YYYY-MM-DD>]
  link <from> <to> [--kind related|depends-on|blocked-by]
  unlink <from> <to>
  graph [move <id> <dx> <dy> | lock <id> | unlock <id>]
  watch [list|board|week]
  config show
  config set <key> <value>
`)
}

func extractGlobalFlags(args []string, getenv func(string) string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	if env := getenv("TASKS_ROOT"); env != "" {
		gf.Root = env
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			gf.Root = filepath.Join(home, ".synapse-tasks")
		} else {
			gf.Root = ".synapse-tasks"
		}
	}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root", "--file", "--format":
			if i+1 >= len(args) {
				return gf, nil, fmt.Errorf("%s requires a value", a)
			}
			switch a {
			case "--root":
				gf.Root = args[i+1]
			case "--file":
				gf.File = args[i+1]
			case "--format":
				gf.Format = strings.ToLower(strings.TrimSpace(args[i+1]))
			}
			skip = 1
		case "--json":
			gf.JSON = true
		case "--plain":
			gf.Plain = true
		case "--ascii":
			gf.ASCII = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		case "--no-persist":
			gf.NoPersist = true
		case "--force-seed":
			gf.ForceSeed = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.Plain {
		return gf, nil, errors.New("--json and --plain are mutually exclusive")
	}
	switch gf.Format {
	case "", "text", "telegram":
	default:
		return gf, nil, fmt.Errorf("unknown --format %q (use text|telegram)", gf.Format)
	}
	gf.Root = expandHome(gf.Root)
	return gf, out, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) usage(msg string) int {
	fmt.Fprintln(a.errOut, "Usage: tasks "+msg)
	return ExitUsage
}

// resolve maps a selector to a task and reports lookup failures with the
// matching exit code.
func (a *app) resolve(cmd, selector string) (store.Task, int) {
	task, err := a.st.Resolve(selector)
	if err == nil {
		return task, ExitOK
	}
	return store.Task{}, a.lookupFailed(cmd, err)
}

func (a *app) lookupFailed(cmd string, err error) int {
	var conflict *store.MatchConflictError
	switch {
	case errors.As(err, &conflict):
		fmt.Fprintf(a.errOut, "%s: ambiguous id prefix (%d matches)\n", cmd, len(conflict.Matches))
		for _, m := range conflict.Matches {
			fmt.Fprintf(a.errOut, "  %s  %s\n", m.ID, m.Title)
		}
		return ExitConflict
	case errors.Is(err, store.ErrConflict):
		fmt.Fprintf(a.errOut, "%s: ambiguous id prefix\n", cmd)
		return ExitConflict
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(a.errOut, "%s: not found\n", cmd)
		return ExitNotFound
	case errors.Is(err, store.ErrInvalid):
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return ExitUsage
	default:
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return ExitInternal
	}
}

func (a *app) writeJSON(payload any) int {
	b, err := sonic.ConfigStd.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintln(a.errOut, "json:", err)
		return ExitInternal
	}
	fmt.Fprintln(a.out, string(b))
	return ExitOK
}

// taskResult prints the outcome of a single-task command.
func (a *app) taskResult(id, human string) int {
	task, ok := a.st.Get(id)
	if !ok {
		fmt.Fprintln(a.errOut, "task disappeared:", id)
		return ExitInternal
	}
	if a.gf.JSON {
		return a.writeJSON(map[string]any{"task": task})
	}
	if !a.gf.Quiet {
		fmt.Fprintln(a.out, human)
	}
	return ExitOK
}

func (a *app) cmdList(args []string) int {
	args = reorderFlags(args, map[string]bool{"--status": true, "--category": true})
	fs := a.flagSet("ls")
	status := fs.String("status", "", "Status (todo|doing|done)")
	category := fs.String("category", "", "Category name or id")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	tasks := a.st.Tasks()
	positions := make(map[string]int, len(tasks))
	for i, t := range tasks {
		positions[t.ID] = i + 1
	}
	if strings.TrimSpace(*status) != "" {
		st, ok := store.ParseStatus(*status)
		if !ok {
			fmt.Fprintf(a.errOut, "ls: invalid --status %q (use todo|doing|done)\n", *status)
			return ExitUsage
		}
		tasks = a.st.TasksByStatus(st)
	}
	if strings.TrimSpace(*category) != "" {
		c, ok := a.st.Category(*category)
		if !ok {
			fmt.Fprintf(a.errOut, "ls: unknown category %q\n", *category)
			return ExitNotFound
		}
		kept := tasks[:0]
		for _, t := range tasks {
			if t.CategoryID == c.ID {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}

	if a.gf.JSON {
		return a.writeJSON(map[string]any{"tasks": tasks})
	}
	if isTelegramFormat(a.gf.Format) {
		fmt.Fprintln(a.out, renderTelegramList(tasks, a.cal))
		return ExitOK
	}
	if a.gf.Plain {
		fmt.Fprintln(a.out, "#\tID\tST\tPRI\tDUE\tTITLE")
		for _, t := range tasks {
			fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\t%s\t%s\n", positions[t.ID], t.ID, t.Status, priorityColumn(t), dueLabel(t, a.cal), t.Title)
		}
		return ExitOK
	}
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "(no tasks)")
		return ExitOK
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tST\tPRI\tDUE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", positions[t.ID], t.IDShort(8), t.Status.Abbrev(), priorityColumn(t), dueLabel(t, a.cal), taskTitle(t.Title))
	}
	_ = w.Flush()
	return ExitOK
}

// multiFlag supports repeated --tag flags.
type multiFlag struct{ Values []string }

func (m *multiFlag) String() string { return strings.Join(m.Values, ",") }
func (m *multiFlag) Set(v string) error {
	m.Values = append(m.Values, v)
	return nil
}

func (a *app) cmdAdd(args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--due":      true,
		"--note":     true,
		"--tag":      true,
		"--priority": true,
		"--category": true,
		"--today":    false,
		"--tomorrow": false,
	})
	fs := a.flagSet("add")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	dueToday := fs.Bool("today", false, "Shortcut: due today")
	dueTomorrow := fs.Bool("tomorrow", false, "Shortcut: due tomorrow")
	note := fs.String("note", "", "Note")
	priorityFlag := fs.String("priority", "", "Priority 1 (highest) to 5")
	category := fs.String("category", "", "Category name; created when missing")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Tag (repeatable)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return a.usage(`add "<title>" [--due <date>|--today|--tomorrow] [--note <text>] [--tag <t>...] [--priority <1-5>] [--category <name>]`)
	}
	priority, err := store.ParsePriority(*priorityFlag)
	if err != nil {
		fmt.Fprintln(a.errOut, "add:", err)
		return ExitUsage
	}
	n := 0
	for _, set := range []bool{strings.TrimSpace(*due) != "", *dueToday, *dueTomorrow} {
		if set {
			n++
		}
	}
	if n > 1 {
		return a.usage("add: choose only one of --due/--today/--tomorrow")
	}

	var dueDate *time.Time
	switch {
	case *dueToday:
		d := a.cal.StartOfDay(timeNow())
		dueDate = &d
	case *dueTomorrow:
		d := a.cal.AddDays(a.cal.StartOfDay(timeNow()), 1)
		dueDate = &d
	case strings.TrimSpace(*due) != "":
		d, err := a.cal.ParseDate(*due)
		if err != nil {
			fmt.Fprintln(a.errOut, "add:", err)
			return ExitUsage
		}
		dueDate = &d
	}

	task, ok := a.st.Add(strings.Join(rest, " "))
	if !ok {
		fmt.Fprintln(a.errOut, "add: title is required")
		return ExitUsage
	}
	if dueDate != nil {
		a.st.SetDueDate(task.ID, dueDate)
	}
	if strings.TrimSpace(*note) != "" {
		a.st.SetNote(task.ID, *note)
	}
	if len(tags.Values) > 0 {
		a.st.SetTags(task.ID, tags.Values...)
	}
	if priority != 0 {
		a.st.SetPriority(task.ID, priority)
	}
	if strings.TrimSpace(*category) != "" {
		c, _, err := a.st.EnsureCategory(*category)
		if err != nil {
			return a.lookupFailed("add", err)
		}
		if _, err := a.st.SetCategory(task.ID, c.ID); err != nil {
			return a.lookupFailed("add", err)
		}
	}
	return a.taskResult(task.ID, fmt.Sprintf("%s %s", task.ID, task.Title))
}

func (a *app) cmdShow(args []string) int {
	if len(args) < 1 {
		return a.usage("show <id-or-#n>")
	}
	task, code := a.resolve("show", args[0])
	if code != ExitOK {
		return code
	}
	g := a.st.Graph()
	category, _ := a.categoryOf(task)
	if a.gf.JSON {
		payload := map[string]any{"task": task, "links": g.EdgesOf(task.ID)}
		if category.ID != "" {
			payload["category"] = category
		}
		return a.writeJSON(payload)
	}
	fmt.Fprint(a.out, renderHuman(task, g, a.cal, category.Name))
	return ExitOK
}

func (a *app) cmdToggle(args []string) int {
	if len(args) < 1 {
		return a.usage("toggle <id-or-#n>")
	}
	task, code := a.resolve("toggle", args[0])
	if code != ExitOK {
		return code
	}
	a.st.Toggle(task.ID)
	after, _ := a.st.Get(task.ID)
	return a.taskResult(task.ID, fmt.Sprintf("%s %s -> %s", task.IDShort(8), task.Status, after.Status))
}

func (a *app) cmdStatus(args []string) int {
	if len(args) < 2 {
		return a.usage("status <id-or-#n> <todo|doing|done>")
	}
	st, ok := store.ParseStatus(args[1])
	if !ok {
		fmt.Fprintf(a.errOut, "status: invalid status %q (use todo|doing|done)\n", args[1])
		return ExitUsage
	}
	return a.cmdSetStatus(args[:1], st, "status")
}

func (a *app) cmdSetStatus(args []string, st store.Status, cmd string) int {
	if len(args) < 1 {
		return a.usage(cmd + " <id-or-#n>")
	}
	task, code := a.resolve(cmd, args[0])
	if code != ExitOK {
		return code
	}
	a.st.SetStatus(task.ID, st)
	return a.taskResult(task.ID, fmt.Sprintf("%s %s -> %s", task.IDShort(8), task.Status, st))
}

func (a *app) cmdDue(args []string) int {
	if len(args) < 2 {
		return a.usage("due <id-or-#n> <YYYY-MM-DD|today|tomorrow|none>")
	}
	task, code := a.resolve("due", args[0])
	if code != ExitOK {
		return code
	}
	var due *time.Time
	switch v := strings.ToLower(strings.TrimSpace(args[1])); v {
	case "none", "clear", "-":
	case "today":
		d := a.cal.StartOfDay(timeNow())
		due = &d
	case "tomorrow":
		d := a.cal.AddDays(a.cal.StartOfDay(timeNow()), 1)
		due = &d
	default:
		d, err := a.cal.ParseDate(v)
		if err != nil {
			fmt.Fprintln(a.errOut, "due:", err)
			return ExitUsage
		}
		due = &d
	}
	a.st.SetDueDate(task.ID, due)
	after, _ := a.st.Get(task.ID)
	return a.taskResult(task.ID, fmt.Sprintf("%s due %s", task.IDShort(8), dueLabel(after, a.cal)))
}

func (a *app) cmdNote(args []string) int {
	if len(args) < 2 {
		return a.usage(`note <id-or-#n> "<text>"`)
	}
	task, code := a.resolve("note", args[0])
	if code != ExitOK {
		return code
	}
	a.st.SetNote(task.ID, strings.Join(args[1:], " "))
	return a.taskResult(task.ID, "Noted "+task.IDShort(8))
}

func (a *app) cmdTag(args []string) int {
	if len(args) < 1 {
		return a.usage("tag <id-or-#n> <tag>...")
	}
	task, code := a.resolve("tag", args[0])
	if code != ExitOK {
		return code
	}
	a.st.SetTags(task.ID, args[1:]...)
	after, _ := a.st.Get(task.ID)
	return a.taskResult(task.ID, fmt.Sprintf("%s tags: %s", task.IDShort(8), strings.Join(after.Tags, ", ")))
}

func (a *app) cmdPriority(args []string) int {
	if len(args) < 2 {
		return a.usage("priority <id-or-#n> <1-5|none>")
	}
	task, code := a.resolve("priority", args[0])
	if code != ExitOK {
		return code
	}
	p, err := store.ParsePriority(args[1])
	if err != nil {
		fmt.Fprintln(a.errOut, "priority:", err)
		return ExitUsage
	}
	a.st.SetPriority(task.ID, p)
	return a.taskResult(task.ID, fmt.Sprintf("%s priority %s", task.IDShort(8), priorityColumn(store.Task{Priority: p})))
}

func (a *app) cmdCategory(args []string) int {
	if len(args) < 2 {
		return a.usage("category <id-or-#n> <name|none>")
	}
	task, code := a.resolve("category", args[0])
	if code != ExitOK {
		return code
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	categoryID := ""
	switch strings.ToLower(name) {
	case "none", "clear", "-":
		name = "-"
	default:
		c, _, err := a.st.EnsureCategory(name)
		if err != nil {
			return a.lookupFailed("category", err)
		}
		categoryID, name = c.ID, c.Name
	}
	if _, err := a.st.SetCategory(task.ID, categoryID); err != nil {
		return a.lookupFailed("category", err)
	}
	return a.taskResult(task.ID, fmt.Sprintf("%s category %s", task.IDShort(8), name))
}

func (a *app) cmdCategories(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "add":
			if len(args) < 2 {
				return a.usage("categories add <name>")
			}
			c, created, err := a.st.EnsureCategory(strings.Join(args[1:], " "))
			if err != nil {
				return a.lookupFailed("categories add", err)
			}
			if a.gf.JSON {
				return a.writeJSON(map[string]any{"category": c, "created": created})
			}
			if !a.gf.Quiet {
				fmt.Fprintf(a.out, "%s %s\n", c.ID, c.Name)
			}
			return ExitOK
		case "rm", "remove":
			if len(args) < 2 {
				return a.usage("categories rm <name-or-id>")
			}
			c, ok := a.st.Category(strings.Join(args[1:], " "))
			if !ok || !a.st.RemoveCategory(c.ID) {
				fmt.Fprintln(a.errOut, "categories rm: not found")
				return ExitNotFound
			}
			if !a.gf.Quiet {
				fmt.Fprintf(a.out, "Removed category %s\n", c.Name)
			}
			return ExitOK
		default:
			return a.usage("categories [add <name> | rm <name-or-id>]")
		}
	}

	cats := a.st.Categories()
	if a.gf.JSON {
		return a.writeJSON(map[string]any{"categories": cats})
	}
	if len(cats) == 0 {
		fmt.Fprintln(a.out, "(no categories)")
		return ExitOK
	}
	var w io.Writer = a.out
	tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	if !a.gf.Plain {
		w = tw
	}
	fmt.Fprintln(w, "ID\tNAME\tTASKS")
	for _, c := range cats {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.ID, c.Name, len(a.st.TasksInCategory(c.ID)))
	}
	_ = tw.Flush()
	return ExitOK
}

// categoryOf reports the task's category, if it has a live one.
func (a *app) categoryOf(t store.Task) (store.Category, bool) {
	if t.CategoryID == "" {
		return store.Category{}, false
	}
	return a.st.Category(t.CategoryID)
}

// cmdRemove deletes by position when every selector is "#n" and by id otherwise.
func (a *app) cmdRemove(args []string) int {
	if len(args) == 0 {
		return a.usage("rm <id-or-#n>...")
	}
	var positions []int
	allPositions := true
	for _, sel := range args {
		n, err := strconv.Atoi(strings.TrimPrefix(sel, "#"))
		if !strings.HasPrefix(sel, "#") || err != nil {
			allPositions = false
			break
		}
		positions = append(positions, n-1)
	}

	removed := 0
	if allPositions {
		removed = a.st.RemoveAt(positions...)
	} else {
		var ids []string
		for _, sel := range args {
			task, err := a.st.Resolve(sel)
			if err != nil {
				a.lookupFailed("rm "+sel, err)
				continue
			}
			ids = append(ids, task.ID)
		}
		removed = a.st.Remove(ids...)
	}
	if a.gf.JSON {
		return a.writeJSON(map[string]any{"removed": removed})
	}
	if removed == 0 {
		fmt.Fprintln(a.errOut, "rm: nothing removed")
		return ExitNotFound
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Removed %d task(s)\n", removed)
	}
	return ExitOK
}

func (a *app) cmdView(tab config.Tab, args []string) int {
	switch tab {
	case config.TabBoard:
		if a.gf.JSON {
			cols := map[string][]store.Task{}
			for _, st := range store.Statuses {
				cols[string(st)] = a.st.TasksByStatus(st)
			}
			return a.writeJSON(map[string]any{"board": cols})
		}
		if isTelegramFormat(a.gf.Format) {
			fmt.Fprintln(a.out, renderTelegramBoard(a.st, a.cal))
			return ExitOK
		}
		fmt.Fprint(a.out, renderBoard(a.st, a.cal, a.gf.ASCII))
		return ExitOK
	case config.TabWeek:
		return a.cmdWeek(args)
	default:
		return a.cmdList(args)
	}
}

func (a *app) cmdWeek(args []string) int {
	args = reorderFlags(args, map[string]bool{"--day": true})
	fs := a.flagSet("week")
	day := fs.String("day", "", "Selected day: weekday name or YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	selected, err := a.selectedDay(*day)
	if err != nil {
		fmt.Fprintln(a.errOut, "week:", err)
		return ExitUsage
	}
	if a.gf.JSON {
		return a.writeJSON(map[string]any{"selected": selected.Format("2006-01-02"), "week": a.st.Week(selected, a.cal)})
	}
	if isTelegramFormat(a.gf.Format) {
		fmt.Fprintln(a.out, renderTelegramWeek(a.st, a.cal, selected))
		return ExitOK
	}
	fmt.Fprint(a.out, renderWeek(a.st, a.cal, selected))
	return ExitOK
}

// selectedDay resolves --day, then the configured initial weekday, then today.
func (a *app) selectedDay(day string) (time.Time, error) {
	now := timeNow()
	day = strings.TrimSpace(day)
	if day == "" {
		day = strings.TrimSpace(a.cfg.InitialWeekday)
	}
	if day == "" {
		return a.cal.StartOfDay(now), nil
	}
	if wd, err := calendar.ParseWeekday(day); err == nil {
		return a.cal.DayInWeek(now, wd), nil
	}
	d, err := a.cal.ParseDate(day)
	if err != nil {
		return time.Time{}, err
	}
	return a.cal.StartOfDay(d), nil
}

func (a *app) cmdLink(args []string) int {
	args = reorderFlags(args, map[string]bool{"--kind": true})
	fs := a.flagSet("link")
	kindFlag := fs.String("kind", "related", "related|depends-on|blocked-by")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return a.usage("link <from> <to> [--kind related|depends-on|blocked-by]")
	}
	kind, err := graph.ParseKind(*kindFlag)
	if err != nil {
		fmt.Fprintln(a.errOut, "link:", err)
		return ExitUsage
	}
	from, code := a.resolve("link", rest[0])
	if code != ExitOK {
		return code
	}
	to, code := a.resolve("link", rest[1])
	if code != ExitOK {
		return code
	}
	if _, err := a.st.Connect(from.ID, to.ID, kind); err != nil {
		return a.lookupFailed("link", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Linked %s -[%s]-> %s\n", from.IDShort(8), kind, to.IDShort(8))
	}
	return ExitOK
}

func (a *app) cmdUnlink(args []string) int {
	if len(args) < 2 {
		return a.usage("unlink <from> <to>")
	}
	from, code := a.resolve("unlink", args[0])
	if code != ExitOK {
		return code
	}
	to, code := a.resolve("unlink", args[1])
	if code != ExitOK {
		return code
	}
	if !a.st.Disconnect(from.ID, to.ID) {
		fmt.Fprintln(a.errOut, "unlink: no such link")
		return ExitNotFound
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Unlinked %s -> %s\n", from.IDShort(8), to.IDShort(8))
	}
	return ExitOK
}

func (a *app) cmdGraph(args []string) int {
	if len(args) == 0 || args[0] == "show" {
		g := a.st.Graph()
		if a.gf.JSON {
			return a.writeJSON(map[string]any{"graph": g})
		}
		fmt.Fprint(a.out, renderGraph(a.st.Tasks(), g))
		return ExitOK
	}
	switch args[0] {
	case "move":
		if len(args) < 4 {
			return a.usage("graph move <id-or-#n> <dx> <dy>")
		}
		dx, errX := strconv.ParseFloat(args[2], 64)
		dy, errY := strconv.ParseFloat(args[3], 64)
		if errX != nil || errY != nil {
			return a.usage("graph move <id-or-#n> <dx> <dy>")
		}
		task, code := a.resolve("graph move", args[1])
		if code != ExitOK {
			return code
		}
		if !a.st.Move(task.ID, dx, dy) {
			fmt.Fprintln(a.errOut, "graph move: node is locked or offset is zero")
			return ExitConflict
		}
		return ExitOK
	case "lock", "unlock":
		if len(args) < 2 {
			return a.usage("graph " + args[0] + " <id-or-#n>")
		}
		task, code := a.resolve("graph "+args[0], args[1])
		if code != ExitOK {
			return code
		}
		a.st.Lock(task.ID, args[0] == "lock")
		return ExitOK
	default:
		return a.usage("graph [show|move|lock|unlock]")
	}
}

func (a *app) cmdConfig(args []string) int {
	if len(args) == 0 {
		return a.usage("config <show|set> ...")
	}
	switch args[0] {
	case "show":
		return a.cmdConfigShow()
	case "set":
		return a.cmdConfigSet(args[1:])
	default:
		return a.usage("config <show|set> ...")
	}
}

func (a *app) cmdConfigShow() int {
	cfgPath := filepath.Join(a.cfg.Root, config.FileName)
	_, err := os.Stat(cfgPath)
	exists := err == nil
	if a.gf.JSON {
		return a.writeJSON(map[string]any{
			"config_path": cfgPath,
			"exists":      exists,
			"store_path":  a.cfg.StorePath(),
			"config":      a.cfg,
		})
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	fmt.Fprintf(w, "root\t%s\n", a.cfg.Root)
	fmt.Fprintf(w, "config_path\t%s\n", cfgPath)
	fmt.Fprintf(w, "exists\t%t\n", exists)
	fmt.Fprintf(w, "store_path\t%s\n", a.cfg.StorePath())
	fmt.Fprintf(w, "disable_persistence\t%t\n", a.cfg.DisablePersistence)
	fmt.Fprintf(w, "force_seed\t%t\n", a.cfg.ForceSeed)
	fmt.Fprintf(w, "initial_tab\t%s\n", a.cfg.InitialTab)
	fmt.Fprintf(w, "initial_weekday\t%s\n", a.cfg.InitialWeekday)
	fmt.Fprintf(w, "first_weekday\t%s\n", a.cal.FirstWeekday)
	fmt.Fprintf(w, "timezone\t%s\n", a.cal.Location)
	fmt.Fprintf(w, "log_level\t%s\n", a.cfg.LogLevel)
	_ = w.Flush()
	return ExitOK
}

// cmdConfigSet edits the file on disk; environment overrides are not written back.
func (a *app) cmdConfigSet(args []string) int {
	if len(args) < 2 {
		return a.usage("config set <key> <value>")
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(strings.Join(args[1:], " "))
	cfg, err := config.LoadWithEnv(a.cfg.Root, func(string) string { return "" })
	if err != nil {
		fmt.Fprintln(a.errOut, "config set:", err)
		return ExitUsage
	}
	switch key {
	case "initial_tab":
		cfg.InitialTab = config.Tab(value)
	case "initial_weekday":
		cfg.InitialWeekday = value
	case "first_weekday":
		cfg.FirstWeekday = value
	case "timezone":
		cfg.Timezone = value
	case "store_file":
		cfg.StoreFile = value
	case "log_level":
		if _, err := logrus.ParseLevel(value); err != nil {
			return configSetInvalid(a.errOut, key, value)
		}
		cfg.LogLevel = value
	case "disable_persistence", "force_seed":
		v, ok := config.ParseBool(value)
		if !ok {
			return configSetInvalid(a.errOut, key, value)
		}
		if key == "force_seed" {
			cfg.ForceSeed = v
		} else {
			cfg.DisablePersistence = v
		}
	default:
		fmt.Fprintln(a.errOut, "Unknown config key:", key)
		fmt.Fprintln(a.errOut, "Allowed keys: initial_tab, initial_weekday, first_weekday, timezone, store_file, log_level, disable_persistence, force_seed")
		return ExitUsage
	}
	if err := cfg.Validate(); err != nil {
		return configSetInvalid(a.errOut, key, value)
	}
	if err := cfg.Save(); err != nil {
		fmt.Fprintln(a.errOut, "config set:", err)
		return ExitInternal
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Updated %s\n", key)
	}
	return ExitOK
}

func configSetInvalid(w io.Writer, key, value string) int {
	fmt.Fprintf(w, "Invalid value for %s: %q\n", key, value)
	return ExitUsage
}
