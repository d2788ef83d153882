package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/chazu/wisp"
	"github.com/chazu/wisp/image"
	"github.com/chazu/wisp/manifest"
	"github.com/chazu/wisp/store"
	"github.com/chazu/wisp/vm"
)

const replHelp = `commands:
  :help                 show this help
  :quit                 exit
  :ps                   list contexts in each queue
  :pause / :resume      pause or resume the evaluator
  :step                 single-step the evaluator while paused
  :save NAME SRC        store a program under NAME
  :load NAME            run a stored program
  :list                 list stored programs
  :del NAME             delete a stored program
  :image-save [PATH]    snapshot the global environment
  :image-load [PATH]    restore a snapshot
anything else is read as a wisp expression and evaluated.`

// repl runs the interactive session until :quit or EOF.
func repl(m *vm.VM, man *manifest.Manifest) {
	log := commonlog.GetLogger("wisp.repl")

	cli := liner.NewLiner()
	defer cli.Close()
	cli.SetCtrlCAborts(true)

	if f, err := os.Open(man.Repl.History); err == nil {
		cli.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(cli, man.Repl.History)

	var st *store.Store
	defer func() {
		if st != nil {
			st.Close()
		}
	}()

	openStore := func() *store.Store {
		if st == nil {
			var err error
			st, err = store.Open(man.Repl.Store)
			if err != nil {
				fmt.Printf("store: %v\n", err)
				return nil
			}
		}
		return st
	}

	fmt.Println(version)
	for {
		line, err := cli.Prompt("wisp> ")
		switch err {
		case nil:
		case liner.ErrPromptAborted:
			continue
		default:
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cli.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if quit := command(m, man, openStore, line); quit {
				return
			}
			continue
		}

		cid, err := wisp.LoadAndLaunchExpression(m, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		r, ok := m.Wait(cid)
		if !ok {
			fmt.Println("runtime killed")
			return
		}
		fmt.Println(m.Str(r))
		m.RemoveDone(cid)
		log.Debugf("evaluated context %d", cid)
	}
}

// command handles a :-prefixed REPL command, reporting whether the
// session should end.
func command(m *vm.VM, man *manifest.Manifest, openStore func() *store.Store, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true

	case ":help":
		fmt.Println(replHelp)

	case ":ps":
		printQueues(m)

	case ":pause":
		m.Pause()
		fmt.Println("pause requested")

	case ":resume":
		m.Resume()
		fmt.Println("resumed")

	case ":step":
		m.StepEval()

	case ":save":
		if len(fields) < 3 {
			fmt.Println("usage: :save NAME SRC")
			break
		}
		st := openStore()
		if st == nil {
			break
		}
		src := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, fields[0]), " "+fields[1]))
		if err := st.Save(fields[1], src); err != nil {
			fmt.Printf("save: %v\n", err)
		}

	case ":load":
		if len(fields) != 2 {
			fmt.Println("usage: :load NAME")
			break
		}
		st := openStore()
		if st == nil {
			break
		}
		src, err := st.Load(fields[1])
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("no stored program %q\n", fields[1])
			break
		}
		if err != nil {
			fmt.Printf("load: %v\n", err)
			break
		}
		cid, err := wisp.LoadAndLaunch(m, src)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		if r, ok := m.Wait(cid); ok {
			fmt.Println(m.Str(r))
			m.RemoveDone(cid)
		}

	case ":list":
		st := openStore()
		if st == nil {
			break
		}
		names, err := st.List()
		if err != nil {
			fmt.Printf("list: %v\n", err)
			break
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case ":del":
		if len(fields) != 2 {
			fmt.Println("usage: :del NAME")
			break
		}
		st := openStore()
		if st == nil {
			break
		}
		if err := st.Delete(fields[1]); err != nil {
			fmt.Printf("del: %v\n", err)
		}

	case ":image-save":
		path := imagePath(man, fields)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Printf("image: %v\n", err)
			break
		}
		if err := image.Save(m, path); err != nil {
			fmt.Printf("image: %v\n", err)
			break
		}
		fmt.Printf("saved %s\n", path)

	case ":image-load":
		path := imagePath(man, fields)
		if err := image.Load(m, path); err != nil {
			fmt.Printf("image: %v\n", err)
			break
		}
		fmt.Printf("loaded %s\n", path)

	default:
		fmt.Printf("unknown command %s (:help for help)\n", fields[0])
	}
	return false
}

func imagePath(man *manifest.Manifest, fields []string) string {
	if len(fields) > 1 {
		return fields[1]
	}
	return man.Image.Path
}

func printQueues(m *vm.VM) {
	show := func(label string) func(*vm.Context) {
		return func(c *vm.Context) {
			fmt.Printf("  %-8s cid=%d stack=%d mailbox=%d\n",
				label, c.ID(), c.StackDepth(), c.MailboxLen())
		}
	}
	m.RunningDo(show("ready"))
	m.BlockedDo(show("blocked"))
	m.DoneDo(show("done"))
}

func saveHistory(cli *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	cli.WriteHistory(f)
}
